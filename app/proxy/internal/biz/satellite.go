package biz

import (
	"context"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/imagery"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const (
	DefaultLimit    = 5
	MaxLimit        = 50
	DefaultLookback = 30 * 24 * time.Hour
)

// Product 目录中的一景影像
type Product struct {
	ID         string
	Name       string
	Start      time.Time
	CloudCover float64
}

// SearchQuery 目录检索条件，End 为结束日当天的最后一刻
type SearchQuery struct {
	Lat   float64
	Lon   float64
	Start time.Time
	End   time.Time
	Limit int
}

// SearchParams 原始查询参数
type SearchParams struct {
	Lat       string
	Lon       string
	StartDate string
	EndDate   string
	Limit     string
}

// CatalogRepo 上游卫星目录
type CatalogRepo interface {
	AccessToken(ctx context.Context) (string, error)
	SearchProducts(ctx context.Context, q SearchQuery) ([]Product, error)
	// OpenQuicklook 返回缩略图内容与 content-type，调用方负责关闭
	OpenQuicklook(ctx context.Context, productID string) (io.ReadCloser, string, error)
}

type SatelliteUseCase struct {
	repo CatalogRepo
	log  *log.Helper
	now  func() time.Time
}

func NewSatelliteUseCase(repo CatalogRepo, logger log.Logger) *SatelliteUseCase {
	return &SatelliteUseCase{repo: repo, log: log.NewHelper(logger), now: time.Now}
}

// Search 检索指定位置与时间窗口内的影像，无结果时 available=false
func (uc *SatelliteUseCase) Search(ctx context.Context, p SearchParams) (*imagery.SearchResponse, error) {
	q, err := uc.parse(p)
	if err != nil {
		return nil, err
	}

	products, err := uc.repo.SearchProducts(ctx, q)
	if err != nil {
		uc.log.Errorf("satellite search failed (%.4f, %.4f): %v", q.Lat, q.Lon, err)
		return nil, upstreamError(KindSearchFailed, err)
	}

	resp := &imagery.SearchResponse{
		Available:  len(products) > 0,
		Imagery:    make([]imagery.ImageDescriptor, 0, len(products)),
		Location:   model.Coordinate{Lat: q.Lat, Lon: q.Lon},
		SearchDate: q.End.Format(time.DateOnly),
	}
	for _, pr := range products {
		resp.Imagery = append(resp.Imagery, imagery.ImageDescriptor{
			ID:         pr.ID,
			Name:       pr.Name,
			Date:       pr.Start,
			CloudCover: pr.CloudCover,
			Thumbnail:  ThumbnailPath(pr.ID),
		})
	}
	resp.Count = len(resp.Imagery)
	return resp, nil
}

// Thumbnail 透传缩略图，content-type 缺失时按 image/png 处理
func (uc *SatelliteUseCase) Thumbnail(ctx context.Context, productID string) (io.ReadCloser, string, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, "", errors.BadRequest(KindMissingParameters, "productId is required")
	}
	body, contentType, err := uc.repo.OpenQuicklook(ctx, productID)
	if err != nil {
		uc.log.Errorf("thumbnail fetch failed for %s: %v", productID, err)
		return nil, "", upstreamError(KindThumbnailFailed, err)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return body, contentType, nil
}

// Authenticate 仅用于诊断，返回当前访问令牌
func (uc *SatelliteUseCase) Authenticate(ctx context.Context) (string, error) {
	tok, err := uc.repo.AccessToken(ctx)
	if err != nil {
		uc.log.Errorf("authentication failed: %v", err)
		return "", upstreamError(KindAuthFailed, err)
	}
	return tok, nil
}

// ThumbnailPath 代理上的缩略图路径
func ThumbnailPath(productID string) string {
	return "/api/satellite/thumbnail/" + productID
}

func (uc *SatelliteUseCase) parse(p SearchParams) (SearchQuery, error) {
	if strings.TrimSpace(p.Lat) == "" || strings.TrimSpace(p.Lon) == "" {
		return SearchQuery{}, errors.BadRequest(KindMissingParameters, "lat and lon are required")
	}
	lat, err := parseCoord(p.Lat, 90)
	if err != nil {
		return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "lat must be a number between -90 and 90")
	}
	lon, err := parseCoord(p.Lon, 180)
	if err != nil {
		return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "lon must be a number between -180 and 180")
	}

	end := uc.now().UTC().Truncate(24 * time.Hour)
	if p.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, p.EndDate); err != nil {
			return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "endDate must be YYYY-MM-DD")
		}
	}
	start := end.Add(-DefaultLookback)
	if p.StartDate != "" {
		if start, err = time.Parse(time.DateOnly, p.StartDate); err != nil {
			return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "startDate must be YYYY-MM-DD")
		}
	}
	if start.After(end) {
		return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "startDate must not be after endDate")
	}

	limit := DefaultLimit
	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 1 {
			return SearchQuery{}, errors.BadRequest(KindInvalidParameters, "limit must be a positive integer")
		}
		limit = min(n, MaxLimit)
	}

	return SearchQuery{
		Lat:   lat,
		Lon:   lon,
		Start: start,
		End:   end.Add(24*time.Hour - time.Millisecond),
		Limit: limit,
	}, nil
}

func parseCoord(s string, bound float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -bound || v > bound {
		return 0, strconv.ErrRange
	}
	return v, nil
}
