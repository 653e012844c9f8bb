package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/report"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrSessionNotFound = errors.NotFound("SESSION_NOT_FOUND", "session not found")
	ErrRunInProgress   = errors.Conflict("RUN_IN_PROGRESS", "a verification run is already in progress for this session")
	ErrMediaRequired   = errors.BadRequest("MEDIA_REQUIRED", "an image is required")
	ErrReportNotReady  = errors.NotFound("REPORT_NOT_READY", "the session has no report yet")
)

// Runner 执行一次核验
type Runner interface {
	Run(ctx context.Context, opts engine.RunOptions) (*model.Report, error)
}

// RunInput 一次提交的内容
type RunInput struct {
	Media            llm.Media
	ClaimedTimestamp string
	LocationContext  string
}

// Snapshot 会话当前状态，日志按产生顺序排列
type Snapshot struct {
	ID        string           `json:"id"`
	Status    Status           `json:"status"`
	Logs      []model.LogEntry `json:"logs"`
	Report    *model.Report    `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type session struct {
	id        string
	status    Status
	logs      []model.LogEntry
	report    *model.Report
	err       string
	updatedAt time.Time
}

func (s *session) snapshot() Snapshot {
	logs := make([]model.LogEntry, len(s.logs))
	copy(logs, s.logs)
	return Snapshot{
		ID:        s.id,
		Status:    s.status,
		Logs:      logs,
		Report:    s.report,
		Error:     s.err,
		UpdatedAt: s.updatedAt,
	}
}

// SessionUseCase 管理界面会话；同一会话同一时间只允许一次运行
type SessionUseCase struct {
	runner Runner
	thumbs report.ThumbnailResolver
	log    *log.Helper

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
	now      func() time.Time
	newID    func() string
}

func NewSessionUseCase(runner Runner, thumbs report.ThumbnailResolver, logger log.Logger) *SessionUseCase {
	return &SessionUseCase{
		runner:   runner,
		thumbs:   thumbs,
		log:      log.NewHelper(logger),
		sessions: make(map[string]*session),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (uc *SessionUseCase) Create() Snapshot {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	s := &session{id: uc.newID(), status: StatusIdle, logs: []model.LogEntry{}, updatedAt: uc.now()}
	uc.sessions[s.id] = s
	return s.snapshot()
}

func (uc *SessionUseCase) Get(id string) (Snapshot, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	s, ok := uc.sessions[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Delete 清除会话；运行中的会话不能删除
func (uc *SessionUseCase) Delete(id string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	s, ok := uc.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.status == StatusRunning {
		return ErrRunInProgress
	}
	delete(uc.sessions, id)
	return nil
}

// StartRun 清空上次的日志与报告并在后台开始运行
func (uc *SessionUseCase) StartRun(id string, in RunInput) (Snapshot, error) {
	if len(in.Media.Data) == 0 {
		return Snapshot{}, ErrMediaRequired
	}

	uc.mu.Lock()
	s, ok := uc.sessions[id]
	if !ok {
		uc.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if s.status == StatusRunning {
		uc.mu.Unlock()
		return Snapshot{}, ErrRunInProgress
	}
	s.status = StatusRunning
	s.logs = []model.LogEntry{}
	s.report = nil
	s.err = ""
	s.updatedAt = uc.now()
	snap := s.snapshot()
	uc.wg.Add(1)
	uc.mu.Unlock()

	go uc.run(s, in)
	return snap, nil
}

// Wait 等待所有后台运行结束
func (uc *SessionUseCase) Wait() {
	uc.wg.Wait()
}

func (uc *SessionUseCase) run(s *session, in RunInput) {
	defer uc.wg.Done()

	var (
		rep *model.Report
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("verification run panicked: %v", r)
			}
		}()
		rep, err = uc.runner.Run(context.Background(), engine.RunOptions{
			Media:            in.Media,
			ClaimedTimestamp: in.ClaimedTimestamp,
			LocationContext:  in.LocationContext,
			OnLog: func(e model.LogEntry) {
				uc.mu.Lock()
				s.logs = append(s.logs, e)
				s.updatedAt = uc.now()
				uc.mu.Unlock()
			},
		})
	}()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	s.updatedAt = uc.now()
	if err != nil {
		uc.log.Errorf("session %s run failed: %v", s.id, err)
		s.status = StatusFailed
		s.err = err.Error()
		if n := len(s.logs); n == 0 || !s.logs[n-1].IsTerminal() {
			s.logs = append(s.logs, model.LogEntry{Timestamp: s.updatedAt, Kind: model.LogError, Message: s.err})
		}
		return
	}
	s.status = StatusCompleted
	s.report = rep
	if n := len(s.logs); n == 0 || !s.logs[n-1].IsTerminal() {
		s.logs = append(s.logs, model.LogEntry{Timestamp: s.updatedAt, Kind: model.LogSuccess, Message: "Verification complete"})
	}
}

// ReportHTML 渲染会话报告
func (uc *SessionUseCase) ReportHTML(id string) (string, error) {
	snap, err := uc.Get(id)
	if err != nil {
		return "", err
	}
	if snap.Report == nil {
		return "", ErrReportNotReady
	}
	return report.HTML(snap.Report, uc.thumbs)
}
