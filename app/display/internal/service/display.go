package service

import (
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/ctrevinoi1/forensic-locator/app/display/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/display/internal/conf"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

const defaultMaxUploadMb = 20

type DisplayService struct {
	ucSession *biz.SessionUseCase
	ucReport  *biz.ReportUseCase
	maxUpload int64
	log       *log.Helper
}

func NewDisplayService(c *conf.Server, ucSession *biz.SessionUseCase, ucReport *biz.ReportUseCase, logger log.Logger) *DisplayService {
	mb := int64(c.MaxUploadMb)
	if mb <= 0 {
		mb = defaultMaxUploadMb
	}
	return &DisplayService{
		ucSession: ucSession,
		ucReport:  ucReport,
		maxUpload: mb << 20,
		log:       log.NewHelper(logger),
	}
}

// RegisterDisplayHTTPServer 注册会话与归档接口
func RegisterDisplayHTTPServer(srv *http.Server, s *DisplayService) {
	r := srv.Route("/api")
	r.POST("/sessions", s.CreateSession)
	r.GET("/sessions/{id}", s.GetSession)
	r.DELETE("/sessions/{id}", s.DeleteSession)
	r.POST("/sessions/{id}/runs", s.StartRun)
	r.GET("/sessions/{id}/report", s.SessionReport)
	r.GET("/reports", s.ListReports)
	r.GET("/reports/{id}", s.GetReport)
}

func (s *DisplayService) CreateSession(ctx http.Context) error {
	snap := s.ucSession.Create()
	return ctx.JSON(nethttp.StatusCreated, map[string]string{"id": snap.ID})
}

func (s *DisplayService) GetSession(ctx http.Context) error {
	snap, err := s.ucSession.Get(ctx.Vars().Get("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, snap)
}

func (s *DisplayService) DeleteSession(ctx http.Context) error {
	if err := s.ucSession.Delete(ctx.Vars().Get("id")); err != nil {
		return err
	}
	ctx.Response().WriteHeader(nethttp.StatusNoContent)
	return nil
}

// StartRun multipart 表单：media, claimedTimestamp, locationContext
func (s *DisplayService) StartRun(ctx http.Context) error {
	req := ctx.Request()
	req.Body = nethttp.MaxBytesReader(ctx.Response(), req.Body, s.maxUpload)
	if err := req.ParseMultipartForm(s.maxUpload); err != nil {
		return errors.BadRequest("INVALID_FORM", "expected multipart form with a media file: "+err.Error())
	}
	file, header, err := req.FormFile("media")
	if err != nil {
		return biz.ErrMediaRequired
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return errors.BadRequest("INVALID_FORM", "read media failed: "+err.Error())
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = nethttp.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return errors.BadRequest("UNSUPPORTED_MEDIA", "media must be an image, got "+mimeType)
	}

	snap, err := s.ucSession.StartRun(ctx.Vars().Get("id"), biz.RunInput{
		Media:            llm.Media{Data: data, MIMEType: mimeType},
		ClaimedTimestamp: strings.TrimSpace(req.FormValue("claimedTimestamp")),
		LocationContext:  strings.TrimSpace(req.FormValue("locationContext")),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusAccepted, snap)
}

func (s *DisplayService) SessionReport(ctx http.Context) error {
	html, err := s.ucSession.ReportHTML(ctx.Vars().Get("id"))
	if err != nil {
		return err
	}
	w := ctx.Response()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nethttp.StatusOK)
	_, err = io.WriteString(w, html)
	return err
}

func (s *DisplayService) ListReports(ctx http.Context) error {
	q := ctx.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	reports, total, err := s.ucReport.List(ctx, page, pageSize)
	if err != nil {
		return err
	}
	if reports == nil {
		reports = []storage.Summary{}
	}
	return ctx.JSON(nethttp.StatusOK, map[string]any{
		"reports": reports,
		"total":   total,
	})
}

func (s *DisplayService) GetReport(ctx http.Context) error {
	r, err := s.ucReport.Get(ctx, ctx.Vars().Get("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, r)
}
