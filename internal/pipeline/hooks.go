package pipeline

import (
	"context"
	"sync"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/logger"
)

// ChartHook 在每次分析后把柱状图写到固定路径，覆盖上一次的结果。
type ChartHook struct {
	path string
	opts chart.RenderOptions
	mu   sync.Mutex // 串行化写入，rename 保证读者看到完整文件
}

// NewChartHook 创建图表输出 Hook。path 为空时使用 chart.DefaultOutputPath。
func NewChartHook(path string, opts chart.RenderOptions) *ChartHook {
	if path == "" {
		path = chart.DefaultOutputPath
	}
	return &ChartHook{path: path, opts: opts}
}

func (h *ChartHook) Name() string { return "chart" }

// Path 返回图表文件路径。
func (h *ChartHook) Path() string { return h.path }

func (h *ChartHook) AfterAnalysis(_ context.Context, a *Analysis) error {
	img := chart.Render(a.Series, h.opts)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := chart.WritePNG(h.path, img); err != nil {
		return err
	}
	logger.Debugf("[pipeline] 图表已写入 %s", h.path)
	return nil
}
