package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/openai/openai-go"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Fallback 按优先级依次尝试多个分类器。
// 当前分类器遇到额度耗尽、限流、服务不可用或超时时切换到下一个，
// 并记住切换后的位置，后续调用直接从它开始。
type Fallback struct {
	entries []Classifier
	labels  sentiment.LabelSet
	current int // 当前活跃索引
	mu      sync.RWMutex
}

// NewFallback 创建降级分类器。所有成员的标签集合必须一致。
func NewFallback(entries ...Classifier) (*Fallback, error) {
	if len(entries) == 0 {
		return nil, &sentiment.ConfigurationError{Field: "classifier.fallback", Reason: "至少需要一个分类器"}
	}
	labels := entries[0].Labels()
	for _, c := range entries[1:] {
		if !c.Labels().SameLabels(labels) {
			return nil, &sentiment.ConfigurationError{
				Field:  "classifier.fallback",
				Reason: fmt.Sprintf("分类器 %s 的标签与 %s 不一致", c.Name(), entries[0].Name()),
			}
		}
	}

	logger.Infof("[classifier] 降级链已初始化，共 %d 个分类器：%s", len(entries), formatNames(entries))
	return &Fallback{entries: entries, labels: labels}, nil
}

func (f *Fallback) Labels() sentiment.LabelSet { return f.labels }

func (f *Fallback) Name() string { return "fallback(" + formatNames(f.entries) + ")" }

// CurrentName 返回当前活跃分类器的名称。
func (f *Fallback) CurrentName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entries[f.current].Name()
}

// Classify 从当前活跃分类器开始尝试，直到成功或全部失败。
func (f *Fallback) Classify(ctx context.Context, sentence string) (Prediction, error) {
	f.mu.RLock()
	startIdx := f.current
	total := len(f.entries)
	f.mu.RUnlock()

	var lastErr error
	for i := 0; i < total; i++ {
		idx := (startIdx + i) % total
		entry := f.entries[idx]

		pred, err := entry.Classify(ctx, sentence)
		if err == nil {
			if idx != startIdx {
				f.mu.Lock()
				f.current = idx
				f.mu.Unlock()
				logger.Infof("[classifier] 切换到分类器 [%s]", entry.Name())
			}
			return pred, nil
		}

		lastErr = err
		logger.Warnf("[classifier] 分类器 [%s] 失败: %v", entry.Name(), err)

		// 调用方取消或整体超时，不再尝试
		if ctx.Err() != nil {
			break
		}
		if !shouldFallback(err) {
			break
		}
		logger.Infof("[classifier] 分类器 [%s] 触发降级，尝试下一个", entry.Name())
	}

	return Prediction{}, wrapErr(f.Name(), sentence, fmt.Errorf("所有分类器均不可用，最后错误: %w", lastErr))
}

// shouldFallback 判断错误是否应该触发降级到下一个分类器。
func shouldFallback(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 402, 429, 500, 502, 503, 504:
			return true
		}
	}

	if isTimeout(err) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	// HTTP 状态码类错误
	for _, code := range []string{"402", "429", "500", "502", "503", "504"} {
		if strings.Contains(errMsg, "状态码 "+code) || strings.Contains(errMsg, "status code "+code) {
			return true
		}
	}

	fallbackKeywords := []string{
		"insufficient", "balance", "quota",
		"rate limit", "too many requests",
		"requestlimitexceeded", "resourceunavailable",
		"余额不足", "额度", "限流",
		"connection refused", "connection reset",
	}
	for _, kw := range fallbackKeywords {
		if strings.Contains(errMsg, kw) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func formatNames(entries []Classifier) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return strings.Join(names, " → ")
}
