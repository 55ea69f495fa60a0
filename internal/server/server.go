// Package server 提供情绪分析的 HTTP 接口。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/history"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/metrics"
	"github.com/iabetor/sentiscope/internal/pipeline"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Analyzer 执行一次分析，由 *pipeline.Pipeline 实现。
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*pipeline.Analysis, error)
	Labels() sentiment.LabelSet
}

// HistoryStore 查询分析历史，由 *history.Store 实现。
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Summary, error)
	Get(ctx context.Context, id string) (*pipeline.Analysis, error)
}

// Options 服务选项。
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    string // 如 1M，为空不限制
	Render       chart.RenderOptions

	History  HistoryStore         // 为空时历史接口返回 404
	Registry *prometheus.Registry // 为空时不提供 /metrics
	Metrics  *metrics.Metrics
}

// Server 是 sentiscope 的 HTTP 服务。
type Server struct {
	echo     *echo.Echo
	opts     Options
	analyzer Analyzer

	mu   sync.RWMutex
	last *pipeline.Analysis // 最近一次成功的分析，供 /api/chart.png 使用
}

// New 创建服务并注册路由。
func New(analyzer Analyzer, opts Options) *Server {
	if opts.Render.Width == 0 || opts.Render.Height == 0 {
		opts.Render = chart.DefaultRenderOptions()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	s := &Server{
		echo:     e,
		opts:     opts,
		analyzer: analyzer,
	}
	s.registerRoutes()
	return s
}

// Handler 返回底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler { return s.echo }

// Run 启动服务，ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[server] 监听 %s", s.opts.Addr)
		errCh <- s.echo.Start(s.opts.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("[server] 启动失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info("[server] 正在关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[server] 关闭失败: %w", err)
	}
	return nil
}

func (s *Server) setLast(a *pipeline.Analysis) {
	s.mu.Lock()
	s.last = a
	s.mu.Unlock()
}

func (s *Server) lastAnalysis() *pipeline.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
