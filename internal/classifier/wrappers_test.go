package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

func fixed(probs ...float64) func(context.Context, string) ([]float64, error) {
	return func(context.Context, string) ([]float64, error) { return probs, nil }
}

func TestTimeout_Expires(t *testing.T) {
	// 内部实现完全不理会 ctx
	slow := NewFunc("slow", sentiment.Binary(), func(context.Context, string) ([]float64, error) {
		time.Sleep(time.Second)
		return []float64{0.5, 0.5}, nil
	})
	c := WithTimeout(slow, 20*time.Millisecond)

	start := time.Now()
	_, err := c.Classify(context.Background(), "慢句子")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var ce *sentiment.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "slow", ce.Classifier)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_PassesThrough(t *testing.T) {
	c := WithTimeout(NewFunc("fast", sentiment.Binary(), fixed(0.2, 0.8)), 0)
	assert.Equal(t, DefaultTimeout, c.timeout)

	pred, err := c.Classify(context.Background(), "好")
	require.NoError(t, err)
	assert.Equal(t, sentiment.Positive, pred.Label)
	assert.Equal(t, "fast", c.Name())
}

func TestRateLimited_WaitRespectsContext(t *testing.T) {
	c := WithRateLimit(NewFunc("rl", sentiment.Binary(), fixed(0.2, 0.8)), 0.001, 1)

	_, err := c.Classify(context.Background(), "第一句")
	require.NoError(t, err)

	// 令牌用完后下一次要等很久，ctx 超时应直接报错
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Classify(ctx, "第二句")
	var ce *sentiment.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "限流")
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveClassification(classifier, outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, classifier+":"+outcome)
}

func TestInstrumented(t *testing.T) {
	obs := &recordingObserver{}
	var fail atomic.Bool
	inner := NewFunc("m", sentiment.Binary(), func(context.Context, string) ([]float64, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return []float64{0.3, 0.7}, nil
	})
	c := WithObserver(inner, obs)

	_, err := c.Classify(context.Background(), "a")
	require.NoError(t, err)
	fail.Store(true)
	_, err = c.Classify(context.Background(), "b")
	require.Error(t, err)

	_, err = WithObserver(WithTimeout(NewFunc("slow", sentiment.Binary(), func(ctx context.Context, _ string) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 10*time.Millisecond), obs).Classify(context.Background(), "c")
	require.Error(t, err)

	assert.Equal(t, []string{"m:ok", "m:error", "slow:timeout"}, obs.calls)
	assert.Same(t, inner, WithObserver(inner, nil))
}

type fakeTranslator struct {
	calls int
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "译:" + text, nil
}

func TestTranslating(t *testing.T) {
	var seen []string
	inner := NewFunc("m", sentiment.Binary(), func(_ context.Context, s string) ([]float64, error) {
		seen = append(seen, s)
		return []float64{0.1, 0.9}, nil
	})
	tr := &fakeTranslator{}
	c := WithTranslation(inner, tr, 0)

	_, err := c.Classify(context.Background(), "I love it")
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), "我很喜欢 it")
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), "123 !!")
	require.NoError(t, err)

	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, []string{"译:I love it", "我很喜欢 it", "123 !!"}, seen)

	tr.err = errors.New("quota")
	_, err = c.Classify(context.Background(), "great")
	var ce *sentiment.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "great", ce.Sentence)
}

type blockingTranslator struct{}

func (blockingTranslator) Translate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestTranslating_TranslateTimeout(t *testing.T) {
	var called atomic.Bool
	inner := NewFunc("m", sentiment.Binary(), func(context.Context, string) ([]float64, error) {
		called.Store(true)
		return []float64{0.1, 0.9}, nil
	})
	c := WithTranslation(inner, blockingTranslator{}, 20*time.Millisecond)

	start := time.Now()
	_, err := c.Classify(context.Background(), "slow translation")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var ce *sentiment.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called.Load(), "翻译超时后不应再调用分类器")
}
