package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iabetor/sentiscope/internal/source"
)

var (
	analyzeFile string
	analyzeURL  string
	analyzeFeed string
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "分析一段文本的逐句情绪",
	Long: "分析一段文本的逐句情绪。\n\n" +
		"文本来自参数、--file、--url（网页正文）、--feed（RSS/Atom 订阅源）或标准输入。",
	Example: `  sentiscope analyze "今天天氣很好，但是下午下雨了。"
  sentiscope analyze --file review.txt --json
  echo "服務很差！" | sentiscope analyze`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFile, "file", "f", "", "从文件读取文本")
	f.StringVar(&analyzeURL, "url", "", "抓取网页正文")
	f.StringVar(&analyzeFeed, "feed", "", "抓取 RSS/Atom 订阅源")
	f.BoolVar(&analyzeJSON, "json", false, "以 JSON 输出结果")
	analyzeCmd.MarkFlagsMutuallyExclusive("file", "url", "feed")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && (analyzeFile != "" || analyzeURL != "" || analyzeFeed != "") {
		return errors.New("文本参数不能与 --file、--url 或 --feed 同时使用")
	}
	cmd.SilenceUsage = true

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var text string
	fetcher := source.NewFetcher(0).WithDelimiters(cfg.Segment.Delimiters)
	switch {
	case len(args) == 1:
		text = strings.TrimSpace(args[0])
	case analyzeFile != "":
		text, err = source.ReadFile(analyzeFile)
	case analyzeURL != "":
		text, err = fetcher.FetchPage(ctx, analyzeURL)
	case analyzeFeed != "":
		text, err = fetcher.FetchFeed(ctx, analyzeFeed)
	default:
		text, err = source.Read(cmd.InOrStdin())
	}
	if err != nil && !errors.Is(err, source.ErrEmpty) {
		return err
	}

	result, err := a.pipeline.Analyze(ctx, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeReport(out, result, a.pipeline.Labels())
	if cfg.Chart.IsEnabled() && len(result.Records) > 0 {
		if _, err := os.Stat(cfg.Chart.Path); err == nil {
			writeChartPath(out, cfg.Chart.Path)
		}
	}
	return nil
}
