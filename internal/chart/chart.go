// Package chart 把逐句情绪结果整理成图表数据，并可渲染成柱状图 PNG。
//
// Build 只做逐条投影，不聚合、不排序；渲染与编码在 render.go 中，
// 调用方可以只取数据自行绘图。
package chart

import (
	"fmt"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// DefaultDecimals 是标注中信心值保留的小数位数。
const DefaultDecimals = 2

// Point 是图表中的一根柱子。
type Point struct {
	Index      int             `json:"index"` // 从 1 开始的句子编号
	Label      sentiment.Label `json:"label"`
	Confidence float64         `json:"confidence"`
	Color      string          `json:"color"`
	Annotation string          `json:"annotation"`
}

// Series 是与记录一一对应、顺序相同的图表数据。
type Series []Point

// Builder 按标签集合的颜色映射生成图表数据。
type Builder struct {
	labels   sentiment.LabelSet
	decimals int
}

// NewBuilder 创建图表数据构建器。decimals < 0 时使用 DefaultDecimals。
func NewBuilder(labels sentiment.LabelSet, decimals int) *Builder {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return &Builder{labels: labels, decimals: decimals}
}

// Build 使用默认小数位数生成图表数据。
func Build(labels sentiment.LabelSet, records []sentiment.Record) Series {
	return NewBuilder(labels, DefaultDecimals).Build(records)
}

// Build 逐条投影记录，长度和顺序与输入完全一致。
func (b *Builder) Build(records []sentiment.Record) Series {
	series := make(Series, len(records))
	for i, r := range records {
		series[i] = Point{
			Index:      i + 1,
			Label:      r.Label,
			Confidence: r.Confidence,
			Color:      b.labels.Color(r.Label),
			Annotation: fmt.Sprintf("%s %.*f", b.labels.Name(r.Label), b.decimals, r.Confidence),
		}
	}
	return series
}
