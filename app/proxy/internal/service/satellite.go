package service

import (
	"io"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
)

// SatelliteService 卫星影像代理的 HTTP 接口
type SatelliteService struct {
	uc  *biz.SatelliteUseCase
	log *log.Helper
}

func NewSatelliteService(uc *biz.SatelliteUseCase, logger log.Logger) *SatelliteService {
	return &SatelliteService{uc: uc, log: log.NewHelper(logger)}
}

// RegisterSatelliteHTTPServer 注册路由
func RegisterSatelliteHTTPServer(srv *http.Server, s *SatelliteService) {
	r := srv.Route("/")
	r.GET("/health", s.Health)
	r.POST("/api/satellite/auth", s.Authenticate)
	r.GET("/api/satellite/search", s.Search)
	r.GET("/api/satellite/thumbnail/{productId}", s.Thumbnail)
}

func (s *SatelliteService) Health(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Satellite imagery proxy is running",
	})
}

func (s *SatelliteService) Authenticate(ctx http.Context) error {
	token, err := s.uc.Authenticate(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, map[string]string{"access_token": token})
}

func (s *SatelliteService) Search(ctx http.Context) error {
	q := ctx.Query()
	resp, err := s.uc.Search(ctx, biz.SearchParams{
		Lat:       q.Get("lat"),
		Lon:       q.Get("lon"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Limit:     q.Get("limit"),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, resp)
}

func (s *SatelliteService) Thumbnail(ctx http.Context) error {
	body, contentType, err := s.uc.Thumbnail(ctx, ctx.Vars().Get("productId"))
	if err != nil {
		return err
	}
	defer body.Close()

	w := ctx.Response()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(nethttp.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// 响应头已发出，只能记录
		s.log.Warnf("stream thumbnail interrupted: %v", err)
	}
	return nil
}
