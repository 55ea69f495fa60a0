package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/classifier"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/sentiment"
	"github.com/iabetor/sentiscope/internal/stats"
)

// Analysis 是一次分析的完整结果。
type Analysis struct {
	ID        string             `json:"id"`
	Text      string             `json:"text"`
	Variant   sentiment.Variant  `json:"variant"`
	Records   []sentiment.Record `json:"records"`
	Stats     stats.Stats        `json:"stats"`
	Series    chart.Series       `json:"series"`
	CreatedAt time.Time          `json:"created_at"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
}

// Hook 在分析成功后执行，如渲染图表、保存历史。
// Hook 的错误只记录日志，不影响分析结果。
type Hook interface {
	Name() string
	AfterAnalysis(ctx context.Context, a *Analysis) error
}

// Observer 接收每次分析的结果。
type Observer interface {
	ObserveAnalysis(err error, labels []string, transitions int)
}

// Options 流水线选项。
type Options struct {
	Delimiters         string // 为空使用默认分句符
	Workers            int    // <= 1 时逐句顺序分类
	AnnotationDecimals int    // <= 0 时使用 chart.DefaultDecimals
	Hooks              []Hook
	Observer           Observer
}

// Pipeline 串联分句、分类、统计和图表数据构建。
// 创建后只读，可以被多个 goroutine 同时使用。
type Pipeline struct {
	cctx      *classifier.Context
	segmenter *Segmenter
	builder   *chart.Builder
	workers   int
	hooks     []Hook
	observer  Observer
}

// New 创建流水线。cctx 在进程启动时创建一次并在各流水线间共享。
func New(cctx *classifier.Context, opts Options) *Pipeline {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	decimals := opts.AnnotationDecimals
	if decimals <= 0 {
		decimals = chart.DefaultDecimals
	}
	return &Pipeline{
		cctx:      cctx,
		segmenter: NewSegmenter(opts.Delimiters),
		builder:   chart.NewBuilder(cctx.Labels(), decimals),
		workers:   workers,
		hooks:     opts.Hooks,
		observer:  opts.Observer,
	}
}

// Labels 返回流水线使用的标签集合。
func (p *Pipeline) Labels() sentiment.LabelSet { return p.cctx.Labels() }

// Analyze 对一段文本做逐句情绪分析。
// 空文本或只有空白时返回空结果，不调用分类器。
// 任一句分类失败时返回 *sentiment.ClassificationError，不会用默认标签替代。
func (p *Pipeline) Analyze(ctx context.Context, text string) (*Analysis, error) {
	start := time.Now()
	labels := p.cctx.Labels()

	sentences := p.segmenter.Segment(text)
	records, err := p.classifyAll(ctx, sentences)
	if err != nil {
		logger.Warnf("[pipeline] 分析失败（%d 句）: %v", len(sentences), err)
		if p.observer != nil {
			p.observer.ObserveAnalysis(err, nil, 0)
		}
		return nil, err
	}

	a := &Analysis{
		ID:        uuid.NewString(),
		Text:      text,
		Variant:   labels.Variant,
		Records:   records,
		Stats:     stats.Aggregate(labels, records),
		Series:    p.builder.Build(records),
		CreatedAt: start,
		Elapsed:   time.Since(start),
	}
	logger.Infof("[pipeline] 分析完成: %d 句, 情绪变化 %d 次, 耗时 %v",
		len(records), a.Stats.Transitions, a.Elapsed.Round(time.Millisecond))

	if p.observer != nil {
		ls := make([]string, len(records))
		for i, r := range records {
			ls[i] = string(r.Label)
		}
		p.observer.ObserveAnalysis(nil, ls, a.Stats.Transitions)
	}

	for _, h := range p.hooks {
		if err := h.AfterAnalysis(ctx, a); err != nil {
			logger.Warnf("[pipeline] %s 执行失败: %v", h.Name(), err)
		}
	}
	return a, nil
}

// classifyAll 按原句顺序返回记录。并发时结果写入各自的下标，第一个错误会取消其余调用。
func (p *Pipeline) classifyAll(ctx context.Context, sentences []string) ([]sentiment.Record, error) {
	records := make([]sentiment.Record, len(sentences))
	if len(sentences) == 0 {
		return records, nil
	}

	if p.workers <= 1 || len(sentences) == 1 {
		for i, s := range sentences {
			r, err := p.classify(ctx, s)
			if err != nil {
				return nil, err
			}
			records[i] = r
		}
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, s := range sentences {
		i, s := i, s
		g.Go(func() error {
			r, err := p.classify(gctx, s)
			if err != nil {
				return err
			}
			records[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// classify 对单句分类并检查结果是否落在标签集合内。
func (p *Pipeline) classify(ctx context.Context, sentence string) (sentiment.Record, error) {
	c := p.cctx.Classifier()
	pred, err := c.Classify(ctx, sentence)
	if err != nil {
		var ce *sentiment.ClassificationError
		if !errors.As(err, &ce) {
			err = &sentiment.ClassificationError{Classifier: c.Name(), Sentence: sentence, Err: err}
		}
		return sentiment.Record{}, err
	}

	if !p.cctx.Labels().Contains(pred.Label) {
		return sentiment.Record{}, &sentiment.ClassificationError{
			Classifier: c.Name(),
			Sentence:   sentence,
			Err:        fmt.Errorf("标签 %q 不在变体 %s 中", pred.Label, p.cctx.Labels().Variant),
		}
	}
	if pred.Confidence < 0 || pred.Confidence > 1 {
		return sentiment.Record{}, &sentiment.ClassificationError{
			Classifier: c.Name(),
			Sentence:   sentence,
			Err:        fmt.Errorf("信心值 %v 超出 [0, 1]", pred.Confidence),
		}
	}
	return sentiment.Record{Sentence: sentence, Label: pred.Label, Confidence: pred.Confidence}, nil
}
