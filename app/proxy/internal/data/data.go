package data

import (
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/conf"
)

// Data 上游访问所需的共享资源
type Data struct {
	upstream *conf.Upstream
	client   *http.Client
	tokens   *TokenSource
	rdb      *redis.Client
}

// NewData 创建上游 HTTP 客户端与令牌源；配置了 Redis 时令牌在副本间共享
func NewData(c *conf.Upstream, cc *conf.Cache, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}
	skew, err := time.ParseDuration(c.TokenSkew)
	if err != nil || skew < 0 {
		skew = time.Minute
	}
	client := &http.Client{Timeout: timeout}

	d := &Data{upstream: c, client: client}

	var store TokenStore = NewMemoryTokenStore()
	if cc != nil && cc.Redis != nil && cc.Redis.Addr != "" {
		d.rdb = redis.NewClient(&redis.Options{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       int(cc.Redis.Db),
		})
		store = NewRedisTokenStore(d.rdb, cc.Redis.Key)
		helper.Infof("token store: redis %s", cc.Redis.Addr)
	} else {
		helper.Info("token store: memory")
	}

	d.tokens = NewTokenSource(c.ClientId, c.ClientSecret, c.TokenUrl, store, client, skew, logger)

	cleanup := func() {
		helper.Info("closing the data resources")
		if d.rdb != nil {
			_ = d.rdb.Close()
		}
	}
	return d, cleanup, nil
}
