package server

import (
	"github.com/google/wire"

	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/data"
	"github.com/ctrevinoi1/forensic-locator/app/proxy/internal/service"
)

// ProviderSet 是卫星代理服务的依赖注入 Provider 集合
var ProviderSet = wire.NewSet(
	// Server providers
	NewHTTPServer,

	// Data providers
	data.NewData,
	data.NewCatalogRepo,

	// Biz providers
	biz.NewSatelliteUseCase,

	// Service providers
	service.NewSatelliteService,
)
