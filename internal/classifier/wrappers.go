package classifier

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// DefaultTimeout 是单次分类调用的默认超时。
const DefaultTimeout = 30 * time.Second

// Timeout 为每次调用加上超时。即使内部实现不理会 ctx，超时后也会立即返回。
type Timeout struct {
	inner   Classifier
	timeout time.Duration
}

// WithTimeout 包装分类器。d <= 0 时使用 DefaultTimeout。
func WithTimeout(c Classifier, d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{inner: c, timeout: d}
}

func (t *Timeout) Name() string               { return t.inner.Name() }
func (t *Timeout) Labels() sentiment.LabelSet { return t.inner.Labels() }

func (t *Timeout) Classify(ctx context.Context, sentence string) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		pred Prediction
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := t.inner.Classify(ctx, sentence)
		done <- result{p, err}
	}()

	select {
	case <-ctx.Done():
		return Prediction{}, wrapErr(t.Name(), sentence, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return Prediction{}, wrapErr(t.Name(), sentence, r.err)
		}
		return r.pred, nil
	}
}

// RateLimited 用令牌桶限制远端接口的调用频率。
type RateLimited struct {
	inner   Classifier
	limiter *rate.Limiter
}

// WithRateLimit 包装分类器，每秒最多 rps 次，允许 burst 次突发。
func WithRateLimit(c Classifier, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string               { return r.inner.Name() }
func (r *RateLimited) Labels() sentiment.LabelSet { return r.inner.Labels() }

func (r *RateLimited) Classify(ctx context.Context, sentence string) (Prediction, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Prediction{}, wrapErr(r.Name(), sentence, fmt.Errorf("等待限流令牌失败: %w", err))
	}
	return r.inner.Classify(ctx, sentence)
}

// Observer 接收每次分类调用的耗时和结果。
type Observer interface {
	ObserveClassification(classifier, outcome string, elapsed time.Duration)
}

// Instrumented 把每次调用的耗时和结果上报给 Observer。
type Instrumented struct {
	inner    Classifier
	observer Observer
}

// WithObserver 包装分类器。observer 为 nil 时原样返回 c。
func WithObserver(c Classifier, observer Observer) Classifier {
	if observer == nil {
		return c
	}
	return &Instrumented{inner: c, observer: observer}
}

func (i *Instrumented) Name() string               { return i.inner.Name() }
func (i *Instrumented) Labels() sentiment.LabelSet { return i.inner.Labels() }

func (i *Instrumented) Classify(ctx context.Context, sentence string) (Prediction, error) {
	start := time.Now()
	pred, err := i.inner.Classify(ctx, sentence)
	outcome := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil || isTimeout(err):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	i.observer.ObserveClassification(i.Name(), outcome, time.Since(start))
	return pred, err
}
