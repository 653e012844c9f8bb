package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

// ErrNotFound 报告不存在
var ErrNotFound = errors.New("report not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS forensic_reports (
	id TEXT PRIMARY KEY,
	verdict TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	claimed_timestamp TEXT NOT NULL DEFAULT '',
	location_context TEXT NOT NULL DEFAULT '',
	body JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Summary 归档列表中的一条记录
type Summary struct {
	ID              string        `json:"id"`
	Verdict         model.Verdict `json:"verdict"`
	ConfidenceScore int           `json:"confidenceScore"`
	Address         string        `json:"address"`
	LocationContext string        `json:"locationContext"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Storage PostgreSQL 报告归档
type Storage struct {
	db *sql.DB
}

// NewStorage 打开数据库连接并初始化表结构
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB 使用已有连接，并初始化表结构
func NewWithDB(db *sql.DB) (*Storage, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveReport 保存报告，同一 ID 重复保存时覆盖
func (s *Storage) SaveReport(ctx context.Context, r *model.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forensic_reports (id, verdict, confidence, address, claimed_timestamp, location_context, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`,
		r.ID, string(r.Verdict), r.ConfidenceScore, r.EstimatedLocation.Address,
		r.ClaimedTimestamp, r.LocationContext, body, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// ListReports 分页列出报告摘要，按创建时间倒序
func (s *Storage) ListReports(ctx context.Context, page, pageSize int) ([]Summary, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, verdict, confidence, address, location_context, created_at
		FROM forensic_reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sm Summary
		var verdict string
		if err := rows.Scan(&sm.ID, &verdict, &sm.ConfidenceScore, &sm.Address, &sm.LocationContext, &sm.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		sm.Verdict = model.Verdict(verdict)
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forensic_reports`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return summaries, total, nil
}

// GetReport 按 ID 读取完整报告
func (s *Storage) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM forensic_reports WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report %s: %w", id, err)
	}
	var r model.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}
