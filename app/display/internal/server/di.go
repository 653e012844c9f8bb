package server

import (
	"github.com/google/wire"

	"github.com/ctrevinoi1/forensic-locator/app/display/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/display/internal/data"
	"github.com/ctrevinoi1/forensic-locator/app/display/internal/service"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
)

// ProviderSet 是展示服务的依赖注入 Provider 集合
var ProviderSet = wire.NewSet(
	// Server providers
	NewHTTPServer,
	NewForensicEngine,
	NewThumbnailResolver,
	wire.Bind(new(biz.Runner), new(*engine.Engine)),

	// Data providers
	data.NewData,
	data.NewReportRepo,

	// UseCase providers
	biz.NewSessionUseCase,
	biz.NewReportUseCase,

	// Service providers
	service.NewDisplayService,
)
