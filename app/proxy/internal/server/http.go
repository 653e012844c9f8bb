package server

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/rs/cors"

	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/conf"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/service"
)

// ErrorEnvelope 所有接口统一的错误响应体
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func NewHTTPServer(c *conf.Server, s *service.SatelliteService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.ErrorEncoder(EncodeError),
	}
	if c.Cors != nil {
		opts = append(opts, http.Filter(NewCORS(c.Cors.AllowedOrigins)))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)
	service.RegisterSatelliteHTTPServer(srv, s)
	return srv
}

// NewCORS 仅允许配置的前端来源
func NewCORS(origins []string) http.FilterFunc {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{nethttp.MethodGet, nethttp.MethodPost, nethttp.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler
}

// EncodeError 把 kratos 错误编码为 {error, message, details}
func EncodeError(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	se := errors.FromError(err)
	env := ErrorEnvelope{
		Error:   se.Reason,
		Message: se.Message,
		Details: se.Metadata[biz.MetadataDetails],
	}
	if env.Error == "" {
		env.Error = "Internal server error"
	}
	if env.Details == "" {
		env.Details = env.Message
	}
	body, _ := json.Marshal(env)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(int(se.Code))
	_, _ = w.Write(body)
}
