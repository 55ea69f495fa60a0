package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/classifier"
	"github.com/iabetor/sentiscope/internal/sentiment"
	"github.com/iabetor/sentiscope/internal/stats"
)

// keywordClassifier 含“好”的句子判为正向，否则负向；可选地统计调用次数。
func keywordClassifier(calls *atomic.Int32) *classifier.Func {
	return classifier.NewFunc("keyword", sentiment.Binary(), func(_ context.Context, s string) ([]float64, error) {
		if calls != nil {
			calls.Add(1)
		}
		if strings.Contains(s, "好") {
			return []float64{0.1, 0.9}, nil
		}
		return []float64{0.8, 0.2}, nil
	})
}

func newTestPipeline(t *testing.T, c classifier.Classifier, opts Options) *Pipeline {
	t.Helper()
	cctx, err := classifier.NewContextWith(c.Labels(), c)
	require.NoError(t, err)
	return New(cctx, opts)
}

func TestAnalyze_Basic(t *testing.T) {
	p := newTestPipeline(t, keywordClassifier(nil), Options{})

	a, err := p.Analyze(context.Background(), "今天天气好，但是堵车了。晚饭很好吃！")
	require.NoError(t, err)

	require.Len(t, a.Records, 3)
	assert.Equal(t, sentiment.Record{Sentence: "今天天气好", Label: sentiment.Positive, Confidence: 0.9}, a.Records[0])
	assert.Equal(t, sentiment.Record{Sentence: "但是堵车了", Label: sentiment.Negative, Confidence: 0.8}, a.Records[1])
	assert.Equal(t, sentiment.Positive, a.Records[2].Label)

	assert.Equal(t, 2, a.Stats.Transitions)
	assert.Equal(t, 2, a.Stats.Get(sentiment.Positive).Count)
	assert.Equal(t, 0.9, a.Stats.Get(sentiment.Positive).Mean)
	assert.Equal(t, 0.0, a.Stats.Get(sentiment.Positive).StdDev)
	assert.Equal(t, len(a.Records), a.Stats.Total())

	require.Len(t, a.Series, 3)
	for i, pt := range a.Series {
		assert.Equal(t, i+1, pt.Index)
		assert.Equal(t, a.Records[i].Confidence, pt.Confidence)
	}
	assert.Equal(t, "green", a.Series[0].Color)
	assert.Equal(t, "red", a.Series[1].Color)
	assert.Equal(t, "負向 0.80", a.Series[1].Annotation)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, sentiment.VariantBinary, a.Variant)
}

func TestAnalyze_Empty(t *testing.T) {
	var calls atomic.Int32
	p := newTestPipeline(t, keywordClassifier(&calls), Options{})

	for _, text := range []string{"", "   ", "，。！？"} {
		a, err := p.Analyze(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, a.Records)
		assert.NotNil(t, a.Records)
		assert.Empty(t, a.Series)
		assert.Equal(t, 0, a.Stats.Transitions)
		for _, l := range p.Labels().Labels {
			assert.Equal(t, stats.LabelStats{}, a.Stats.Get(l))
		}
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestAnalyze_ClassificationErrorPropagates(t *testing.T) {
	cause := errors.New("model unavailable")
	c := classifier.NewFunc("broken", sentiment.Binary(), func(_ context.Context, s string) ([]float64, error) {
		if s == "坏" {
			return nil, cause
		}
		return []float64{0.5, 0.5}, nil
	})
	p := newTestPipeline(t, c, Options{})

	a, err := p.Analyze(context.Background(), "一，坏，三")
	assert.Nil(t, a)
	var ce *sentiment.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "坏", ce.Sentence)
	assert.ErrorIs(t, err, cause)
}

// rawClassifier 不经过 Decide，用来模拟不守约定的实现。
type rawClassifier struct {
	pred classifier.Prediction
	err  error
}

func (r rawClassifier) Classify(context.Context, string) (classifier.Prediction, error) {
	return r.pred, r.err
}
func (r rawClassifier) Labels() sentiment.LabelSet { return sentiment.Binary() }
func (r rawClassifier) Name() string               { return "raw" }

func TestAnalyze_RejectsInvalidPredictions(t *testing.T) {
	tests := []struct {
		name string
		c    rawClassifier
		want string
	}{
		{"foreign label", rawClassifier{pred: classifier.Prediction{Label: sentiment.Neutral, Confidence: 0.9}}, "不在变体"},
		{"confidence above one", rawClassifier{pred: classifier.Prediction{Label: sentiment.Positive, Confidence: 1.2}}, "超出"},
		{"plain error", rawClassifier{err: errors.New("boom")}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.c, Options{})
			_, err := p.Analyze(context.Background(), "句子")
			var ce *sentiment.ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "raw", ce.Classifier)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyze_ParallelPreservesOrder(t *testing.T) {
	// 越靠前的句子越慢，乱序完成
	c := classifier.NewFunc("slow", sentiment.Binary(), func(_ context.Context, s string) ([]float64, error) {
		n := len([]rune(s))
		time.Sleep(time.Duration(20-n) * time.Millisecond)
		if n%2 == 0 {
			return []float64{0.3, 0.7}, nil
		}
		return []float64{0.6, 0.4}, nil
	})
	sentences := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg", "hhhhhhhh"}
	text := strings.Join(sentences, "，")

	seq, err := newTestPipeline(t, c, Options{Workers: 1}).Analyze(context.Background(), text)
	require.NoError(t, err)
	par, err := newTestPipeline(t, c, Options{Workers: 4}).Analyze(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, par.Records, len(sentences))
	for i, s := range sentences {
		assert.Equal(t, s, par.Records[i].Sentence)
	}
	assert.Equal(t, seq.Records, par.Records)
	assert.Equal(t, seq.Stats, par.Stats)
	assert.Equal(t, seq.Series, par.Series)
}

func TestAnalyze_ParallelFirstErrorCancels(t *testing.T) {
	var started atomic.Int32
	c := classifier.NewFunc("mixed", sentiment.Binary(), func(ctx context.Context, s string) ([]float64, error) {
		started.Add(1)
		if s == "fail" {
			return nil, errors.New("boom")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return []float64{0.5, 0.5}, nil
		}
	})
	p := newTestPipeline(t, c, Options{Workers: 3})

	start := time.Now()
	_, err := p.Analyze(context.Background(), "x，fail，y")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

type recordingHook struct {
	mu    sync.Mutex
	seen  []*Analysis
	fails bool
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) AfterAnalysis(_ context.Context, a *Analysis) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, a)
	if h.fails {
		return errors.New("disk full")
	}
	return nil
}

type recordingObserver struct {
	ok, failed int
	labels     []string
}

func (o *recordingObserver) ObserveAnalysis(err error, labels []string, _ int) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
	o.labels = append(o.labels, labels...)
}

func TestAnalyze_HooksAndObserver(t *testing.T) {
	failing := &recordingHook{fails: true}
	after := &recordingHook{}
	obs := &recordingObserver{}
	p := newTestPipeline(t, keywordClassifier(nil), Options{Hooks: []Hook{failing, after}, Observer: obs})

	a, err := p.Analyze(context.Background(), "好，坏")
	require.NoError(t, err, "hook failure must not fail the analysis")
	require.Len(t, after.seen, 1)
	assert.Same(t, a, after.seen[0])
	assert.Equal(t, 1, obs.ok)
	assert.Equal(t, []string{"positive", "negative"}, obs.labels)

	broken := classifier.NewFunc("broken", sentiment.Binary(), func(context.Context, string) ([]float64, error) {
		return nil, errors.New("down")
	})
	p = newTestPipeline(t, broken, Options{Hooks: []Hook{after}, Observer: obs})
	_, err = p.Analyze(context.Background(), "好")
	require.Error(t, err)
	assert.Len(t, after.seen, 1, "hooks only run on success")
	assert.Equal(t, 1, obs.failed)
}

func TestChartHook_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotion_plot.png")
	hook := NewChartHook(path, chart.DefaultRenderOptions())
	p := newTestPipeline(t, keywordClassifier(nil), Options{Hooks: []Hook{hook}})

	_, err := p.Analyze(context.Background(), "好，坏，好")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, path, hook.Path())

	assert.Equal(t, chart.DefaultOutputPath, NewChartHook("", chart.RenderOptions{}).Path())
}

func TestAnalyze_TernaryCustomColors(t *testing.T) {
	labels := sentiment.Ternary().WithColors(map[sentiment.Label]string{sentiment.Neutral: "#aaaaaa"})
	c := classifier.NewFunc("t", sentiment.Ternary(), func(context.Context, string) ([]float64, error) {
		return []float64{0.2, 0.6, 0.2}, nil
	})
	cctx, err := classifier.NewContextWith(labels, c)
	require.NoError(t, err)

	a, err := New(cctx, Options{AnnotationDecimals: 1}).Analyze(context.Background(), "嗯。")
	require.NoError(t, err)
	require.Len(t, a.Series, 1)
	assert.Equal(t, "#aaaaaa", a.Series[0].Color)
	assert.Equal(t, "中性 0.6", a.Series[0].Annotation)
	assert.Equal(t, 0, a.Stats.Get(sentiment.Positive).Count)
}
