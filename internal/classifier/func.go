package classifier

import (
	"context"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Func 把一个返回概率分布的函数适配成 Classifier，结果经过 Decide 校验。
type Func struct {
	name   string
	labels sentiment.LabelSet
	fn     func(ctx context.Context, sentence string) ([]float64, error)
}

// NewFunc 创建函数分类器。
func NewFunc(name string, labels sentiment.LabelSet, fn func(ctx context.Context, sentence string) ([]float64, error)) *Func {
	return &Func{name: name, labels: labels, fn: fn}
}

func (f *Func) Name() string               { return f.name }
func (f *Func) Labels() sentiment.LabelSet { return f.labels }

func (f *Func) Classify(ctx context.Context, sentence string) (Prediction, error) {
	sentence = Truncate(sentence, MaxInputRunes)
	probs, err := f.fn(ctx, sentence)
	if err != nil {
		return Prediction{}, wrapErr(f.name, sentence, err)
	}
	pred, err := Decide(f.labels, probs)
	if err != nil {
		return Prediction{}, wrapErr(f.name, sentence, err)
	}
	return pred, nil
}
