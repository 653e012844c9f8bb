package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const (
	consumerTag        = "forensic-verification-consumer"
	publishTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	defaultConcurrency = 2
)

// 结果状态
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VerificationJob 队列中的核验任务
type VerificationJob struct {
	JobID            string `json:"jobId"`
	MediaBase64      string `json:"mediaBase64"`
	MIMEType         string `json:"mimeType"`
	ClaimedTimestamp string `json:"claimedTimestamp,omitempty"`
	LocationContext  string `json:"locationContext"`
}

// VerificationResult 发布到结果队列的消息
type VerificationResult struct {
	JobID       string           `json:"jobId"`
	Status      string           `json:"status"`
	Report      *model.Report    `json:"report,omitempty"`
	Error       string           `json:"error,omitempty"`
	Logs        []model.LogEntry `json:"logs"`
	CompletedAt time.Time        `json:"completedAt"`
}

// Runner 执行一次核验
type Runner interface {
	Run(ctx context.Context, opts engine.RunOptions) (*model.Report, error)
}

// DecodeJob 解析并校验任务消息
func DecodeJob(body []byte) (*VerificationJob, []byte, error) {
	var job VerificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if strings.TrimSpace(job.JobID) == "" {
		return nil, nil, fmt.Errorf("%w: jobId is required", model.ErrValidation)
	}
	media, err := base64.StdEncoding.DecodeString(job.MediaBase64)
	if err != nil || len(media) == 0 {
		return nil, nil, fmt.Errorf("%w: mediaBase64 is empty or invalid", model.ErrValidation)
	}
	if job.MIMEType == "" {
		job.MIMEType = "image/jpeg"
	}
	return &job, media, nil
}

// Execute 运行任务并收集日志，运行失败体现在结果的状态中
func Execute(ctx context.Context, runner Runner, job *VerificationJob, media []byte) *VerificationResult {
	result := &VerificationResult{JobID: job.JobID, Logs: []model.LogEntry{}}
	var mu sync.Mutex

	rep, err := runner.Run(ctx, engine.RunOptions{
		Media:            llm.Media{Data: media, MIMEType: job.MIMEType},
		ClaimedTimestamp: job.ClaimedTimestamp,
		LocationContext:  job.LocationContext,
		OnLog: func(e model.LogEntry) {
			mu.Lock()
			result.Logs = append(result.Logs, e)
			mu.Unlock()
		},
	})
	result.CompletedAt = time.Now().UTC()
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}
	result.Status = StatusCompleted
	result.Report = rep
	return result
}

// JobConsumer 从 RabbitMQ 消费核验任务
type JobConsumer struct {
	cfg        config.QueueConfig
	runner     Runner
	runTimeout time.Duration

	conn    *amqp.Connection
	channel *amqp.Channel

	publish   func(ctx context.Context, result *VerificationResult) error
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewJobConsumer 连接 RabbitMQ 并声明任务队列与结果队列
func NewJobConsumer(cfg *config.Config, runner Runner) (*JobConsumer, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if cfg.Queue.URL == "" {
		return nil, fmt.Errorf("queue url is not configured")
	}

	jc := newConsumer(cfg, runner)
	if err := jc.connect(); err != nil {
		return nil, err
	}
	jc.publish = jc.publishResult
	return jc, nil
}

func newConsumer(cfg *config.Config, runner Runner) *JobConsumer {
	concurrency := cfg.Concurrency.Workers
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	runTimeout := time.Duration(cfg.Pipeline.RunTimeout) * time.Second
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &JobConsumer{
		cfg:        cfg.Queue,
		runner:     runner,
		runTimeout: runTimeout,
		semaphore:  make(chan struct{}, concurrency),
	}
}

func (jc *JobConsumer) connect() error {
	logger.Log.Infof("[JobConsumer] 连接 RabbitMQ")

	conn, err := amqp.Dial(jc.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	for _, q := range []string{jc.cfg.JobQueue, jc.cfg.ResultQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}
	if err := ch.Qos(cap(jc.semaphore), 0, false); err != nil {
		logger.Log.Warnf("[JobConsumer] 设置 QoS 失败: %v", err)
	}

	jc.conn = conn
	jc.channel = ch
	return nil
}

// Start 开始消费，阻塞直到 ctx 取消或投递通道关闭
func (jc *JobConsumer) Start(ctx context.Context) error {
	deliveries, err := jc.channel.Consume(jc.cfg.JobQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	logger.Log.Infof("[JobConsumer] 开始消费队列 %s，并发 %d", jc.cfg.JobQueue, cap(jc.semaphore))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[JobConsumer] 上下文取消，停止消费")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			jc.semaphore <- struct{}{}
			jc.wg.Add(1)
			go func() {
				defer func() {
					<-jc.semaphore
					jc.wg.Done()
				}()
				jc.processMessage(ctx, d)
			}()
		}
	}
}

// processMessage 处理一条消息：格式错误不重新入队，发布失败重新入队
func (jc *JobConsumer) processMessage(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("[JobConsumer] 处理消息 %d 时发生 panic: %v", d.DeliveryTag, r)
			_ = d.Nack(false, false)
		}
	}()

	job, media, err := DecodeJob(d.Body)
	if err != nil {
		logger.Log.Warnf("[JobConsumer] 丢弃无法解析的消息 %d: %v", d.DeliveryTag, err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Log.Errorf("[JobConsumer] Nack 失败 %d: %v", d.DeliveryTag, nackErr)
		}
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, jc.runTimeout)
	result := Execute(runCtx, jc.runner, job, media)
	cancel()
	logger.Log.Infof("[JobConsumer] 任务 %s 完成，状态 %s", job.JobID, result.Status)

	pubCtx, pubCancel := context.WithTimeout(context.Background(), publishTimeout)
	defer pubCancel()
	if err := jc.publish(pubCtx, result); err != nil {
		logger.Log.Errorf("[JobConsumer] 发布任务 %s 结果失败: %v", job.JobID, err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Log.Errorf("[JobConsumer] Nack 失败 %d: %v", d.DeliveryTag, nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		logger.Log.Errorf("[JobConsumer] Ack 失败 %d: %v", d.DeliveryTag, err)
	}
}

func (jc *JobConsumer) publishResult(ctx context.Context, result *VerificationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return jc.channel.PublishWithContext(ctx, "", jc.cfg.ResultQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    result.CompletedAt,
		MessageId:    result.JobID,
	})
}

// Close 等待处理中的任务结束并释放连接
func (jc *JobConsumer) Close() {
	jc.wg.Wait()
	if jc.channel != nil {
		if err := jc.channel.Close(); err != nil {
			logger.Log.Warnf("[JobConsumer] 关闭 channel 失败: %v", err)
		}
	}
	if jc.conn != nil {
		if err := jc.conn.Close(); err != nil {
			logger.Log.Warnf("[JobConsumer] 关闭连接失败: %v", err)
		}
	}
}
