// Package stats 汇总逐句情绪结果：各标签的均值、标准差、句数，以及情绪变化次数。
package stats

import (
	"math"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// LabelStats 是单个标签的统计结果。
type LabelStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// Stats 是一次分析的汇总统计，计算后不再修改。
type Stats struct {
	// Labels 是统计覆盖的标签顺序，与标签集合一致。
	Labels  []sentiment.Label              `json:"labels"`
	ByLabel map[sentiment.Label]LabelStats `json:"by_label"`

	// Transitions 是相邻两句标签不同的次数。
	Transitions int `json:"transitions"`
}

// Get 返回某个标签的统计，未出现的标签返回零值。
func (s Stats) Get(l sentiment.Label) LabelStats {
	return s.ByLabel[l]
}

// Total 返回所有标签的句数之和。
func (s Stats) Total() int {
	n := 0
	for _, ls := range s.ByLabel {
		n += ls.Count
	}
	return n
}

// accumulator 用 Welford 算法单遍累计均值和方差。
type accumulator struct {
	n    int
	mean float64
	m2   float64
}

func (a *accumulator) add(x float64) {
	a.n++
	delta := x - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (x - a.mean)
}

func (a *accumulator) result() LabelStats {
	if a.n == 0 {
		return LabelStats{}
	}
	variance := a.m2 / float64(a.n) // 总体方差，除以 n
	if variance < 0 {
		variance = 0
	}
	return LabelStats{Mean: a.mean, StdDev: math.Sqrt(variance), Count: a.n}
}

// Aggregate 对有序记录单遍计算统计结果，无副作用。
// 标签集合中没有出现的标签，其均值、标准差、句数都为 0。
// 不在标签集合中的记录不计入任何标签，但仍参与变化次数计算。
func Aggregate(labels sentiment.LabelSet, records []sentiment.Record) Stats {
	accs := make(map[sentiment.Label]*accumulator, len(labels.Labels))
	for _, l := range labels.Labels {
		accs[l] = &accumulator{}
	}

	transitions := 0
	for i, r := range records {
		if acc, ok := accs[r.Label]; ok {
			acc.add(r.Confidence)
		}
		if i > 0 && records[i-1].Label != r.Label {
			transitions++
		}
	}

	out := Stats{
		Labels:      append([]sentiment.Label(nil), labels.Labels...),
		ByLabel:     make(map[sentiment.Label]LabelStats, len(accs)),
		Transitions: transitions,
	}
	for l, acc := range accs {
		out.ByLabel[l] = acc.result()
	}
	return out
}
