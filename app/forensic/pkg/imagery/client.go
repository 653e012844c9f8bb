package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const (
	defaultLimit        = 5
	defaultLookbackDays = 30
)

// Searcher 卫星影像检索接口，失败时降级为 available=false，从不返回错误
type Searcher interface {
	Search(ctx context.Context, lat, lon float64, date *time.Time) model.SatelliteResult
}

// Config 影像客户端配置
type Config struct {
	ProxyURL     string
	Limit        int
	LookbackDays int
	Timeout      time.Duration
}

// Client 通过凭据代理检索卫星影像
type Client struct {
	baseURL  string
	limit    int
	lookback int
	client   *http.Client
	now      func() time.Time
}

// Ensure Client implements Searcher
var _ Searcher = (*Client)(nil)

// NewClient 创建影像客户端
func NewClient(cfg Config) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.ProxyURL, "/"),
		limit:    limit,
		lookback: lookback,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// SearchResponse 代理检索接口的响应
type SearchResponse struct {
	Available  bool              `json:"available"`
	Imagery    []ImageDescriptor `json:"imagery"`
	Location   model.Coordinate  `json:"location"`
	SearchDate string            `json:"searchDate"`
	Count      int               `json:"count"`
}

// ImageDescriptor 代理返回的单景影像
type ImageDescriptor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	CloudCover float64   `json:"cloudCover"`
	Thumbnail  string    `json:"thumbnail"`
}

// Search implements Searcher
func (c *Client) Search(ctx context.Context, lat, lon float64, date *time.Time) model.SatelliteResult {
	end := c.now().UTC()
	if date != nil {
		end = date.UTC()
	}
	start := end.AddDate(0, 0, -c.lookback)

	result := model.SatelliteResult{
		Available:     false,
		QueryLocation: model.Coordinate{Lat: lat, Lon: lon},
		SearchDate:    end.Format(time.DateOnly),
	}

	resp, err := c.doSearch(ctx, lat, lon, start, end)
	if err != nil {
		logger.Log.Warnf("卫星影像检索失败 (%.4f, %.4f): %v", lat, lon, err)
		return result
	}
	if !resp.Available || len(resp.Imagery) == 0 {
		return result
	}

	images := make([]model.SatelliteImage, 0, len(resp.Imagery))
	for _, d := range resp.Imagery {
		images = append(images, model.SatelliteImage{
			ID:                d.ID,
			Name:              d.Name,
			CaptureTimestamp:  d.Date,
			CloudCoverPercent: d.CloudCover,
			ThumbnailRef:      d.Thumbnail,
		})
	}
	// 代理按时间倒序返回，这里再排序截断一次保证约定成立
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CaptureTimestamp.After(images[j].CaptureTimestamp)
	})
	if len(images) > c.limit {
		images = images[:c.limit]
	}

	result.Available = true
	result.Imagery = images
	return result
}

// ThumbnailURL 把缩略图引用解析为代理上的绝对地址
func (c *Client) ThumbnailURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

func (c *Client) doSearch(ctx context.Context, lat, lon float64, start, end time.Time) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("startDate", start.Format(time.DateOnly))
	q.Set("endDate", end.Format(time.DateOnly))
	q.Set("limit", strconv.Itoa(c.limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/satellite/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagery proxy error (status %d): %s", res.StatusCode, string(body))
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}
	return &searchResp, nil
}
