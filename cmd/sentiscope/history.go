package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iabetor/sentiscope/internal/database"
	"github.com/iabetor/sentiscope/internal/history"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看保存的分析历史",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "显示一次分析的完整结果",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除一次分析",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "以 JSON 输出")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "显示的条数")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd)
}

// historyStore 是只读历史命令使用的存储及当前标签配置。
type historyStore struct {
	*history.Store
	labels sentiment.LabelSet
	db     *database.DB
}

// openStore 只打开历史存储，不创建分类器。
func openStore() (*historyStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.IsEnabled() {
		return nil, errors.New("历史记录未启用，请在配置文件中设置 database.enabled: true")
	}
	labels, err := cfg.LabelSet()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(db, labels, cfg.Chart.AnnotationDecimals)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &historyStore{Store: store, labels: labels, db: db}, nil
}

func (s *historyStore) Close() { s.db.Close() }

// labelsFor 返回显示历史记录用的标签集合。变体与当前配置不同时使用该变体的默认设置。
func (s *historyStore) labelsFor(v sentiment.Variant) (sentiment.LabelSet, error) {
	if s.labels.Variant == v {
		return s.labels, nil
	}
	return sentiment.NewLabelSet(v)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		if list == nil {
			list = []history.Summary{}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(list)
	}
	writeHistory(cmd.OutOrStdout(), list)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	if historyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	labels, err := store.labelsFor(a.Variant)
	if err != nil {
		return err
	}
	writeReport(cmd.OutOrStdout(), a, labels)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s\n", args[0])
	return nil
}
