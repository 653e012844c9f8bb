package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

// ErrArchiveDisabled 未配置数据库时访问归档
var ErrArchiveDisabled = errors.NotFound("ARCHIVE_DISABLED", "report archive is not configured")

type ReportRepo interface {
	Enabled() bool
	ListReports(ctx context.Context, page, pageSize int) ([]storage.Summary, int, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
}

type ReportUseCase struct {
	repo ReportRepo
	log  *log.Helper
}

func NewReportUseCase(repo ReportRepo, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{repo: repo, log: log.NewHelper(logger)}
}

func (uc *ReportUseCase) List(ctx context.Context, page, pageSize int) ([]storage.Summary, int, error) {
	if !uc.repo.Enabled() {
		return nil, 0, ErrArchiveDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return uc.repo.ListReports(ctx, page, pageSize)
}

func (uc *ReportUseCase) Get(ctx context.Context, id string) (*model.Report, error) {
	if !uc.repo.Enabled() {
		return nil, ErrArchiveDisabled
	}
	return uc.repo.GetReport(ctx, id)
}
