package data

import (
	"context"
	"errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/ctrevinoi1/forensic-locator/app/display/internal/biz"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

type reportRepo struct {
	data *Data
	log  *log.Helper
}

func NewReportRepo(data *Data, logger log.Logger) biz.ReportRepo {
	return &reportRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *reportRepo) Enabled() bool {
	return r.data.store != nil
}

func (r *reportRepo) ListReports(ctx context.Context, page, pageSize int) ([]storage.Summary, int, error) {
	return r.data.store.ListReports(ctx, page, pageSize)
}

func (r *reportRepo) GetReport(ctx context.Context, id string) (*model.Report, error) {
	rep, err := r.data.store.GetReport(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, kerrors.NotFound("REPORT_NOT_FOUND", "report not found")
	}
	return rep, err
}
