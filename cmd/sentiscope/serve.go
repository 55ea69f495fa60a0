package main

import (
	"github.com/spf13/cobra"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 分析服务",
	Example: `  sentiscope serve --addr :9000
  curl -d '{"text":"今天很開心！"}' -H 'Content-Type: application/json' localhost:9000/api/analyze`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，覆盖配置中的 server.addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  secondsOf(cfg.Server.ReadTimeout),
		WriteTimeout: secondsOf(cfg.Server.WriteTimeout),
		BodyLimit:    cfg.Server.MaxBodyBytes,
		Render:       renderOptions(cfg),
		Registry:     a.registry,
		Metrics:      a.metrics,
	}
	// 接口为 nil 时 server 才能识别出未启用历史
	if a.history != nil {
		opts.History = a.history
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := server.New(a.pipeline, opts).Run(ctx); err != nil {
		return err
	}
	logger.Info("[main] Sentiscope 已停止")
	return nil
}
