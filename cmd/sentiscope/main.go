package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/classifier"
	"github.com/iabetor/sentiscope/internal/config"
	"github.com/iabetor/sentiscope/internal/database"
	"github.com/iabetor/sentiscope/internal/history"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/metrics"
	"github.com/iabetor/sentiscope/internal/pipeline"
)

const defaultConfigPath = "configs/sentiscope.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sentiscope",
	Short: "逐句中文情绪分析",
	Long: "Sentiscope 把一段中文文本按标点切分成句子，逐句判断情绪，\n" +
		"汇总各情绪的信心值统计与情绪变化次数，并生成逐句信心柱状图。",
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "配置文件路径")
	rootCmd.AddCommand(analyzeCmd, serveCmd, historyCmd, labelsCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化日志。默认路径的配置文件不存在时使用内置默认值。
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if configPath != defaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app 持有一次命令运行所需的组件。
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	db       *database.DB
	history  *history.Store
	pipeline *pipeline.Pipeline
}

// newApp 组装分类器、流水线及可选的图表和历史记录。
func newApp(cfg *config.Config) (*app, error) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	cctx, err := classifier.NewContext(cfg, m)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: reg, metrics: m}
	var hooks []pipeline.Hook
	if cfg.Chart.IsEnabled() {
		hooks = append(hooks, pipeline.NewChartHook(cfg.Chart.Path, renderOptions(cfg)))
	}
	if cfg.Database.IsEnabled() {
		if err := a.openHistory(cctx); err != nil {
			return nil, err
		}
		hooks = append(hooks, a.history)
	}

	a.pipeline = pipeline.New(cctx, pipeline.Options{
		Delimiters:         cfg.Segment.Delimiters,
		Workers:            cfg.Pipeline.Workers,
		AnnotationDecimals: cfg.Chart.AnnotationDecimals,
		Hooks:              hooks,
		Observer:           m,
	})
	logger.Infof("[main] 分类器: %s, 变体: %s", cctx.Classifier().Name(), cctx.Labels().Variant)
	return a, nil
}

func (a *app) openHistory(cctx *classifier.Context) error {
	db, err := database.Open(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	store, err := history.NewStore(db, cctx.Labels(), a.cfg.Chart.AnnotationDecimals)
	if err != nil {
		db.Close()
		return err
	}
	a.db = db
	a.history = store
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("[main] 关闭数据库失败: %v", err)
		}
	}
}

func renderOptions(cfg *config.Config) chart.RenderOptions {
	opts := chart.DefaultRenderOptions()
	opts.Width = cfg.Chart.Width
	opts.Height = cfg.Chart.Height
	if cfg.Chart.Title != "" {
		opts.Title = cfg.Chart.Title
	}
	return opts
}

func secondsOf(n int) time.Duration { return time.Duration(n) * time.Second }

// signalContext 在收到 SIGINT 或 SIGTERM 时取消。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
