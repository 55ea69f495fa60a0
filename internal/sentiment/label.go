package sentiment

import (
	"fmt"
	"strings"
)

// Label 是句子的情绪类别。
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Variant 表示分类器的标签变体。
type Variant string

const (
	// VariantBinary 二分类：负向、正向。
	VariantBinary Variant = "binary"
	// VariantTernary 三分类：负向、中性、正向。
	VariantTernary Variant = "ternary"
)

// 默认颜色与显示名称：红=负向、绿=正向、灰=中性。
var (
	defaultColors = map[Label]string{
		Positive: "green",
		Negative: "red",
		Neutral:  "gray",
	}
	defaultNames = map[Label]string{
		Positive: "正向",
		Negative: "負向",
		Neutral:  "中性",
	}
)

// LabelSet 是当前生效的标签配置。
// Labels 的顺序即分类器输出概率分布的下标顺序。
type LabelSet struct {
	Variant Variant          `json:"variant"`
	Labels  []Label          `json:"labels"`
	Colors  map[Label]string `json:"colors"`
	Names   map[Label]string `json:"names"`
}

// variantLabels 返回变体对应的标签顺序。
func variantLabels(v Variant) ([]Label, bool) {
	switch v {
	case VariantBinary:
		return []Label{Negative, Positive}, true
	case VariantTernary:
		return []Label{Negative, Neutral, Positive}, true
	}
	return nil, false
}

// NewLabelSet 按变体创建带默认颜色和名称的标签集合。
func NewLabelSet(v Variant) (LabelSet, error) {
	labels, ok := variantLabels(v)
	if !ok {
		return LabelSet{}, &ConfigurationError{Field: "labels.variant", Reason: fmt.Sprintf("不支持的变体 %q", v)}
	}
	s := LabelSet{
		Variant: v,
		Labels:  labels,
		Colors:  make(map[Label]string, len(labels)),
		Names:   make(map[Label]string, len(labels)),
	}
	for _, l := range labels {
		s.Colors[l] = defaultColors[l]
		s.Names[l] = defaultNames[l]
	}
	return s, nil
}

// Binary 返回默认二分类标签集合。
func Binary() LabelSet {
	s, _ := NewLabelSet(VariantBinary)
	return s
}

// Ternary 返回默认三分类标签集合。
func Ternary() LabelSet {
	s, _ := NewLabelSet(VariantTernary)
	return s
}

// WithColors 返回覆盖了部分颜色的副本。
func (s LabelSet) WithColors(colors map[Label]string) LabelSet {
	out := s.clone()
	for l, c := range colors {
		out.Colors[l] = c
	}
	return out
}

// WithNames 返回覆盖了部分显示名称的副本。
func (s LabelSet) WithNames(names map[Label]string) LabelSet {
	out := s.clone()
	for l, n := range names {
		out.Names[l] = n
	}
	return out
}

func (s LabelSet) clone() LabelSet {
	out := LabelSet{
		Variant: s.Variant,
		Labels:  append([]Label(nil), s.Labels...),
		Colors:  make(map[Label]string, len(s.Colors)),
		Names:   make(map[Label]string, len(s.Names)),
	}
	for k, v := range s.Colors {
		out.Colors[k] = v
	}
	for k, v := range s.Names {
		out.Names[k] = v
	}
	return out
}

// Validate 检查标签集合与变体是否一致，且每个标签都有颜色。
func (s LabelSet) Validate() error {
	want, ok := variantLabels(s.Variant)
	if !ok {
		return &ConfigurationError{Field: "labels.variant", Reason: fmt.Sprintf("不支持的变体 %q", s.Variant)}
	}
	if len(s.Labels) != len(want) {
		return &ConfigurationError{
			Field:  "labels",
			Reason: fmt.Sprintf("变体 %s 需要 %d 个标签，实际 %d 个", s.Variant, len(want), len(s.Labels)),
		}
	}
	for i, l := range want {
		if s.Labels[i] != l {
			return &ConfigurationError{
				Field:  "labels",
				Reason: fmt.Sprintf("第 %d 个标签应为 %s，实际为 %s", i, l, s.Labels[i]),
			}
		}
	}
	for _, l := range s.Labels {
		if strings.TrimSpace(s.Colors[l]) == "" {
			return &ConfigurationError{Field: "labels.colors." + string(l), Reason: "缺少颜色映射"}
		}
	}
	for l := range s.Colors {
		if !s.Contains(l) {
			return &ConfigurationError{Field: "labels.colors." + string(l), Reason: "标签不在当前变体中"}
		}
	}
	return nil
}

// Contains 判断标签是否属于集合。
func (s LabelSet) Contains(l Label) bool {
	return s.Index(l) >= 0
}

// Index 返回标签在分布中的下标，不存在返回 -1。
func (s LabelSet) Index(l Label) int {
	for i, x := range s.Labels {
		if x == l {
			return i
		}
	}
	return -1
}

// Color 返回标签的颜色。
func (s LabelSet) Color(l Label) string {
	return s.Colors[l]
}

// Name 返回标签的显示名称，未配置时返回标签本身。
func (s LabelSet) Name(l Label) string {
	if n, ok := s.Names[l]; ok && n != "" {
		return n
	}
	return string(l)
}

// SameLabels 判断两个集合的标签及顺序是否一致（忽略颜色和名称）。
func (s LabelSet) SameLabels(o LabelSet) bool {
	if len(s.Labels) != len(o.Labels) {
		return false
	}
	for i := range s.Labels {
		if s.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return true
}

// ParseLabel 解析标签名称，支持英文和中文写法。
func ParseLabel(s string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "正向", "正面", "积极", "積極":
		return Positive, true
	case "negative", "neg", "負向", "负向", "负面", "負面", "消极", "消極":
		return Negative, true
	case "neutral", "neu", "中性", "中立":
		return Neutral, true
	}
	return "", false
}
