package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iabetor/sentiscope/internal/history"
	"github.com/iabetor/sentiscope/internal/pipeline"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

const rule = "---"

// writeReport 输出逐句结果和情绪统计。
func writeReport(w io.Writer, a *pipeline.Analysis, labels sentiment.LabelSet) {
	if len(a.Records) == 0 {
		fmt.Fprintln(w, "没有可分析的句子")
		return
	}

	fmt.Fprintln(w, "逐句情绪分析结果")
	for i, r := range a.Records {
		fmt.Fprintf(w, "句子 %d: 「%s」\n", i+1, r.Sentence)
		fmt.Fprintf(w, "情緒：%s（信心值：%.3f）\n", labels.Name(r.Label), r.Confidence)
		fmt.Fprintln(w, rule)
	}

	fmt.Fprintln(w, "情緒統計分析")
	for _, l := range labels.Labels {
		ls := a.Stats.Get(l)
		fmt.Fprintf(w, "%s句子數：%d（平均信心值 %.3f，標準差 %.3f）\n", labels.Name(l), ls.Count, ls.Mean, ls.StdDev)
	}
	fmt.Fprintf(w, "情緒變化次數：%d\n", a.Stats.Transitions)
}

func writeChartPath(w io.Writer, path string) {
	fmt.Fprintf(w, "情緒信心圖已保存: %s\n", path)
}

// writeHistory 输出历史摘要列表。
func writeHistory(w io.Writer, list []history.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "暂无历史记录")
		return
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s  %s  %-7s  %2d 句  变化 %d 次  %s\n",
			s.ID, s.CreatedAt.Local().Format(time.DateTime), s.Variant,
			s.SentenceCount, s.Transitions, strings.ReplaceAll(s.Preview, "\n", " "))
	}
}
