package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

// TokenStore 保存上游访问令牌及其过期时间
type TokenStore interface {
	// Get 没有令牌时返回 nil, nil
	Get(ctx context.Context) (*oauth2.Token, error)
	Set(ctx context.Context, tok *oauth2.Token) error
}

type memoryTokenStore struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewMemoryTokenStore 进程内令牌存储
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{}
}

func (m *memoryTokenStore) Get(ctx context.Context) (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok, nil
}

func (m *memoryTokenStore) Set(ctx context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	m.tok = tok
	m.mu.Unlock()
	return nil
}

type redisTokenStore struct {
	rdb *redis.Client
	key string
}

// NewRedisTokenStore 多个代理副本共享同一个令牌，键随令牌一起过期
func NewRedisTokenStore(rdb *redis.Client, key string) TokenStore {
	return &redisTokenStore{rdb: rdb, key: key}
}

func (r *redisTokenStore) Get(ctx context.Context) (*oauth2.Token, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *redisTokenStore) Set(ctx context.Context, tok *oauth2.Token) error {
	ttl := time.Until(tok.Expiry)
	if tok.Expiry.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, b, ttl).Err()
}

// TokenSource 客户端凭据模式获取令牌，缓存到过期前 skew 为止
type TokenSource struct {
	cfg    clientcredentials.Config
	store  TokenStore
	client *http.Client
	skew   time.Duration
	now    func() time.Time
	log    *log.Helper

	mu sync.Mutex
}

// NewTokenSource 创建令牌源，凭据缺失时在首次使用时报错
func NewTokenSource(clientID, clientSecret, tokenURL string, store TokenStore, client *http.Client, skew time.Duration, logger log.Logger) *TokenSource {
	return &TokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		store:  store,
		client: client,
		skew:   skew,
		now:    time.Now,
		log:    log.NewHelper(logger),
	}
}

// Token 返回有效令牌，仅在缓存缺失或即将过期时重新获取
func (s *TokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: COPERNICUS_CLIENT_ID and COPERNICUS_CLIENT_SECRET must be set", model.ErrAuthConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.store.Get(ctx)
	if err != nil {
		s.log.Warnf("read cached token failed: %v", err)
	} else if s.valid(cached) {
		return cached, nil
	}

	tok, err := s.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, s.client))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamAuth, err)
	}
	if err := s.store.Set(ctx, tok); err != nil {
		s.log.Warnf("store token failed: %v", err)
	}
	s.log.Debugf("acquired upstream token, expires at %s", tok.Expiry.Format(time.RFC3339))
	return tok, nil
}

func (s *TokenSource) valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return s.now().Add(s.skew).Before(tok.Expiry)
}
