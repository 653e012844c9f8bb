package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/storage"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "forensic",
		Short:         "Forensic image verification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "app/forensic/configs/config.yaml", "config file path")

	root.AddCommand(newVerifyCmd(), newWorkerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志；配置文件不存在时使用默认值与环境变量
func setup() (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("无法加载配置文件: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("无法初始化日志: %w", err)
	}
	return cfg, nil
}

// openStore 配置了数据库时连接归档，失败只记录日志
func openStore(cfg *config.Config) *storage.Storage {
	if !cfg.DB.Enabled() {
		logger.Log.Info("未配置数据库信息，跳过报告归档")
		return nil
	}
	s, err := storage.NewStorage(cfg.DB)
	if err != nil {
		logger.Log.Errorf("无法连接数据库: %v，报告将不会归档", err)
		return nil
	}
	logger.Log.Info("已成功连接到数据库")
	return s
}
