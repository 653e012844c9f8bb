package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

// mockReportRepo 模拟报告归档
type mockReportRepo struct {
	enabled  bool
	page     int
	pageSize int
}

func (m *mockReportRepo) Enabled() bool { return m.enabled }

func (m *mockReportRepo) ListReports(ctx context.Context, page, pageSize int) ([]storage.Summary, int, error) {
	m.page, m.pageSize = page, pageSize
	return []storage.Summary{{ID: "r1", Verdict: model.VerdictVerified}}, 1, nil
}

func (m *mockReportRepo) GetReport(ctx context.Context, id string) (*model.Report, error) {
	return &model.Report{ID: id}, nil
}

func TestReportUseCase_List(t *testing.T) {
	repo := &mockReportRepo{enabled: true}
	uc := NewReportUseCase(repo, log.DefaultLogger)

	reports, total, err := uc.List(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "r1", reports[0].ID)
	assert.Equal(t, 1, repo.page)
	assert.Equal(t, 10, repo.pageSize)
}

func TestReportUseCase_ArchiveDisabled(t *testing.T) {
	uc := NewReportUseCase(&mockReportRepo{}, log.DefaultLogger)

	_, _, err := uc.List(context.Background(), 1, 10)
	assert.True(t, errors.Is(err, ErrArchiveDisabled))
	_, err = uc.Get(context.Background(), "r1")
	assert.True(t, errors.Is(err, ErrArchiveDisabled))
}
