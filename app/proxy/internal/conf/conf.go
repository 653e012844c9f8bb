package conf

import (
	"os"
	"strings"
)

type Bootstrap struct {
	Server   *Server   `json:"server"`
	Upstream *Upstream `json:"upstream"`
	Cache    *Cache    `json:"cache"`
}

type Server struct {
	Http *HTTP `json:"http"`
	Cors *Cors `json:"cors"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

type Cors struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// Upstream 卫星目录服务 (Copernicus Data Space) 配置
type Upstream struct {
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenUrl     string `json:"token_url"`
	CatalogUrl   string `json:"catalog_url"`
	Collection   string `json:"collection"`
	Timeout      string `json:"timeout"`
	// TokenSkew 令牌提前刷新的余量
	TokenSkew string `json:"token_skew"`
}

type Cache struct {
	Redis *Redis `json:"redis"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	Db       int32  `json:"db"`
	Key      string `json:"key"`
}

// ApplyEnv 用环境变量覆盖凭据、端口、前端来源与 Redis 地址
func (b *Bootstrap) ApplyEnv() {
	b.ensure()
	setFromEnv(&b.Upstream.ClientId, "COPERNICUS_CLIENT_ID")
	setFromEnv(&b.Upstream.ClientSecret, "COPERNICUS_CLIENT_SECRET")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		b.Server.Http.Addr = "0.0.0.0:" + port
	}
	if origin := strings.TrimSpace(os.Getenv("FRONTEND_ORIGIN")); origin != "" {
		b.Server.Cors.AllowedOrigins = strings.Split(origin, ",")
	}
	setFromEnv(&b.Cache.Redis.Addr, "REDIS_ADDR")
}

// ApplyDefaults 填充未配置项
func (b *Bootstrap) ApplyDefaults() {
	b.ensure()
	if b.Server.Http.Addr == "" {
		b.Server.Http.Addr = "0.0.0.0:3001"
	}
	if len(b.Server.Cors.AllowedOrigins) == 0 {
		b.Server.Cors.AllowedOrigins = []string{"http://localhost:5173"}
	}
	u := b.Upstream
	if u.TokenUrl == "" {
		u.TokenUrl = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	}
	if u.CatalogUrl == "" {
		u.CatalogUrl = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	}
	if u.Collection == "" {
		u.Collection = "SENTINEL-2"
	}
	if u.Timeout == "" {
		u.Timeout = "30s"
	}
	if u.TokenSkew == "" {
		u.TokenSkew = "60s"
	}
	if b.Cache.Redis.Key == "" {
		b.Cache.Redis.Key = "forensic:proxy:token"
	}
}

func (b *Bootstrap) ensure() {
	if b.Server == nil {
		b.Server = &Server{}
	}
	if b.Server.Http == nil {
		b.Server.Http = &HTTP{}
	}
	if b.Server.Cors == nil {
		b.Server.Cors = &Cors{}
	}
	if b.Upstream == nil {
		b.Upstream = &Upstream{}
	}
	if b.Cache == nil {
		b.Cache = &Cache{}
	}
	if b.Cache.Redis == nil {
		b.Cache.Redis = &Redis{}
	}
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
