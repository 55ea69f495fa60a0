// Package classifier 定义单句情绪分类能力，以及各种远端实现和包装器。
//
// 所有实现都返回与自身标签顺序对齐的概率分布，由 Decide 统一取 argmax。
// 任何失败都包装成 *sentiment.ClassificationError，不会替换成默认标签。
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// MaxInputRunes 是送入模型的最大字符数，超出部分截断。
// 默认模型 max_length=512 个 token，去掉 [CLS] 和 [SEP]。
const MaxInputRunes = 510

// probTolerance 是概率和偏离 1 的容差。
const probTolerance = 1e-3

// Prediction 是一次分类的结果。
type Prediction struct {
	Label      sentiment.Label `json:"label"`
	Confidence float64         `json:"confidence"`
	Probs      []float64       `json:"probs,omitempty"` // 与 Labels() 顺序对齐
}

// Classifier 把一个句子映射为情绪标签和信心值。
// 实现必须可以被并发调用。
type Classifier interface {
	// Classify 对单个非空句子分类。
	Classify(ctx context.Context, sentence string) (Prediction, error)
	// Labels 返回该分类器产出的标签集合。
	Labels() sentiment.LabelSet
	// Name 返回用于日志和指标的名称。
	Name() string
}

// ErrInvalidDistribution 表示分类器返回的概率分布不合法。
var ErrInvalidDistribution = errors.New("概率分布不合法")

// Decide 校验概率分布并取 argmax（并列时取第一个），
// 信心值为该标签的概率，保留 4 位小数。
func Decide(labels sentiment.LabelSet, probs []float64) (Prediction, error) {
	if len(probs) != len(labels.Labels) {
		return Prediction{}, fmt.Errorf("%w: 期望 %d 个概率，实际 %d 个", ErrInvalidDistribution, len(labels.Labels), len(probs))
	}

	sum := 0.0
	best := 0
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1+probTolerance {
			return Prediction{}, fmt.Errorf("%w: 第 %d 个概率为 %v", ErrInvalidDistribution, i, p)
		}
		sum += p
		if p > probs[best] {
			best = i
		}
	}
	if math.Abs(sum-1) > probTolerance {
		return Prediction{}, fmt.Errorf("%w: 概率和为 %.6f", ErrInvalidDistribution, sum)
	}

	conf := math.Round(probs[best]*1e4) / 1e4
	if conf > 1 {
		conf = 1
	}
	return Prediction{
		Label:      labels.Labels[best],
		Confidence: conf,
		Probs:      append([]float64(nil), probs...),
	}, nil
}

// Softmax 把 logits 转换为概率分布。
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Truncate 按字符数截断句子，结果确定。
func Truncate(sentence string, max int) string {
	if max <= 0 {
		return sentence
	}
	n := 0
	for i := range sentence {
		if n == max {
			return sentence[:i]
		}
		n++
	}
	return sentence
}

// wrapErr 把错误包装成 ClassificationError，已经包装过的原样返回。
func wrapErr(name, sentence string, err error) error {
	if err == nil {
		return nil
	}
	var ce *sentiment.ClassificationError
	if errors.As(err, &ce) {
		return err
	}
	return &sentiment.ClassificationError{Classifier: name, Sentence: sentence, Err: err}
}
