package sources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const defaultParallel = 4

// Enricher 为引用来源补全标题
type Enricher interface {
	Enrich(ctx context.Context, sources []model.GroundingSource) []model.GroundingSource
}

// ReadabilityEnricher 抓取引用页面并用正文提取得到的标题替换占位标题
type ReadabilityEnricher struct {
	max      int
	timeout  time.Duration
	parallel int
	fetch    func(pageURL string, timeout time.Duration) (string, error)
}

// Ensure ReadabilityEnricher implements Enricher
var _ Enricher = (*ReadabilityEnricher)(nil)

// NewReadabilityEnricher 创建来源补全器，max 为最多处理的来源数
func NewReadabilityEnricher(max int, timeout time.Duration) *ReadabilityEnricher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReadabilityEnricher{
		max:      max,
		timeout:  timeout,
		parallel: defaultParallel,
		fetch:    fetchTitle,
	}
}

func fetchTitle(pageURL string, timeout time.Duration) (string, error) {
	article, err := readability.FromURL(pageURL, timeout)
	if err != nil {
		return "", err
	}
	return article.Title, nil
}

// Enrich 返回新的来源列表，顺序不变；单个来源失败时保留原值
func (e *ReadabilityEnricher) Enrich(ctx context.Context, in []model.GroundingSource) []model.GroundingSource {
	out := make([]model.GroundingSource, len(in))
	copy(out, in)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)

	scheduled := 0
	for i := range out {
		if e.max > 0 && scheduled >= e.max {
			break
		}
		if !NeedsTitle(out[i]) {
			continue
		}
		scheduled++
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			title, err := e.fetch(out[i].URI, e.timeout)
			if err != nil {
				logger.Log.Debugf("来源标题抓取失败 [%s]: %v", out[i].URI, err)
				return nil
			}
			if title = strings.TrimSpace(title); title != "" {
				out[i].Title = title
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// NeedsTitle 标题为空或只是域名时需要补全
func NeedsTitle(s model.GroundingSource) bool {
	if s.URI == "" {
		return false
	}
	title := strings.TrimSpace(s.Title)
	if title == "" {
		return true
	}
	u, err := url.Parse(s.URI)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return strings.EqualFold(strings.TrimPrefix(title, "www."), host) || (!strings.Contains(title, " ") && strings.Contains(title, "."))
}
