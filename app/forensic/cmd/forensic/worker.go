package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/worker"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume verification jobs from RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store engine.ReportStore
	if s := openStore(cfg); s != nil {
		defer s.Close()
		store = s
	}

	eng, err := engine.NewEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	consumer, err := worker.NewJobConsumer(cfg, eng)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Log.Info("启动核验任务消费者...")
	return consumer.Start(ctx)
}
