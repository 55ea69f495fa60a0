// Package history 把分析结果保存到 SQLite，并支持按时间倒序查询。
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/sentiscope/internal/chart"
	"github.com/iabetor/sentiscope/internal/database"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/pipeline"
	"github.com/iabetor/sentiscope/internal/sentiment"
	"github.com/iabetor/sentiscope/internal/stats"
)

// ErrNotFound 表示指定 ID 的分析不存在。
var ErrNotFound = errors.New("[history] 分析记录不存在")

// DefaultLimit 是 List 未指定数量时返回的条数。
const DefaultLimit = 20

// 固定宽度的 UTC 时间格式，字符串顺序即时间顺序
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// previewRunes 是摘要中保留的原文字数。
const previewRunes = 40

// Summary 是列表中的一条分析摘要。
type Summary struct {
	ID            string            `json:"id"`
	Variant       sentiment.Variant `json:"variant"`
	Preview       string            `json:"preview"`
	SentenceCount int               `json:"sentence_count"`
	Transitions   int               `json:"transitions"`
	CreatedAt     time.Time         `json:"created_at"`
	Elapsed       time.Duration     `json:"elapsed_ns"`
}

// Store 分析历史存储。
type Store struct {
	db       *database.DB
	labels   sentiment.LabelSet
	decimals int
	builder  *chart.Builder
}

// NewStore 创建历史存储。读取历史时用 labels 和 decimals 重建图表数据，
// 颜色和显示名称以当前配置为准；变体不同的记录使用该变体的默认设置。
func NewStore(db *database.DB, labels sentiment.LabelSet, decimals int) (*Store, error) {
	if err := db.Migrate(); err != nil {
		return nil, err
	}
	s := &Store{
		db:       db,
		labels:   labels,
		decimals: decimals,
		builder:  chart.NewBuilder(labels, decimals),
	}
	logger.Infof("[history] 历史记录已加载，共 %d 条", s.Count())
	return s, nil
}

// Name 实现 pipeline.Hook。
func (s *Store) Name() string { return "history" }

// AfterAnalysis 实现 pipeline.Hook，保存每次成功的分析。
func (s *Store) AfterAnalysis(ctx context.Context, a *pipeline.Analysis) error {
	return s.Save(ctx, a)
}

// Save 在一个事务中保存分析及其逐句记录。
func (s *Store) Save(ctx context.Context, a *pipeline.Analysis) error {
	statsJSON, err := json.Marshal(a.Stats)
	if err != nil {
		return fmt.Errorf("[history] 序列化统计失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[history] 开启事务失败: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, text, variant, sentence_count, transitions, stats, created_at, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Text, string(a.Variant), len(a.Records), a.Stats.Transitions, string(statsJSON),
		a.CreatedAt.UTC().Format(timeLayout), a.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("[history] 保存分析失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO analysis_records (analysis_id, idx, sentence, label, confidence) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("[history] 准备语句失败: %w", err)
	}
	defer stmt.Close()

	for i, r := range a.Records {
		if _, err := stmt.ExecContext(ctx, a.ID, i, r.Sentence, string(r.Label), r.Confidence); err != nil {
			return fmt.Errorf("[history] 保存第 %d 句失败: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[history] 提交事务失败: %w", err)
	}
	logger.Debugf("[history] 已保存分析 %s（%d 句）", a.ID, len(a.Records))
	return nil
}

// List 按时间倒序返回最近 limit 条摘要，limit <= 0 时使用 DefaultLimit。
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, variant, sentence_count, transitions, created_at, elapsed_ms
		 FROM analyses ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("[history] 查询历史失败: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			text      string
			variant   string
			createdAt string
			elapsedMS int64
		)
		if err := rows.Scan(&sum.ID, &text, &variant, &sum.SentenceCount, &sum.Transitions, &createdAt, &elapsedMS); err != nil {
			return nil, fmt.Errorf("[history] 读取历史失败: %w", err)
		}
		sum.Variant = sentiment.Variant(variant)
		sum.Preview = preview(text)
		sum.CreatedAt = parseTime(createdAt)
		sum.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get 返回完整的分析结果，不存在时返回 ErrNotFound。
func (s *Store) Get(ctx context.Context, id string) (*pipeline.Analysis, error) {
	var (
		a         pipeline.Analysis
		variant   string
		statsJSON string
		createdAt string
		elapsedMS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, variant, stats, created_at, elapsed_ms FROM analyses WHERE id = ?`, id,
	).Scan(&a.ID, &a.Text, &variant, &statsJSON, &createdAt, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[history] 查询分析失败: %w", err)
	}
	a.Variant = sentiment.Variant(variant)
	a.CreatedAt = parseTime(createdAt)
	a.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	var st stats.Stats
	if err := json.Unmarshal([]byte(statsJSON), &st); err != nil {
		return nil, fmt.Errorf("[history] 解析统计失败: %w", err)
	}
	a.Stats = st

	rows, err := s.db.QueryContext(ctx,
		`SELECT sentence, label, confidence FROM analysis_records WHERE analysis_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("[history] 查询逐句记录失败: %w", err)
	}
	defer rows.Close()

	a.Records = []sentiment.Record{}
	for rows.Next() {
		var r sentiment.Record
		var label string
		if err := rows.Scan(&r.Sentence, &label, &r.Confidence); err != nil {
			return nil, fmt.Errorf("[history] 读取逐句记录失败: %w", err)
		}
		r.Label = sentiment.Label(label)
		a.Records = append(a.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	builder, err := s.builderFor(a.Variant)
	if err != nil {
		return nil, err
	}
	a.Series = builder.Build(a.Records)
	return &a, nil
}

// builderFor 返回与记录变体匹配的图表构建器。
func (s *Store) builderFor(v sentiment.Variant) (*chart.Builder, error) {
	if v == s.labels.Variant {
		return s.builder, nil
	}
	set, err := sentiment.NewLabelSet(v)
	if err != nil {
		return nil, fmt.Errorf("[history] 记录的变体无效: %w", err)
	}
	return chart.NewBuilder(set, s.decimals), nil
}

// Delete 删除一条分析，逐句记录由外键级联删除。
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("[history] 删除分析失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count 返回保存的分析条数。
func (s *Store) Count() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM analyses").Scan(&n); err != nil {
		logger.Warnf("[history] 统计失败: %v", err)
		return 0
	}
	return n
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "…"
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		logger.Warnf("[history] 时间格式错误 %q: %v", s, err)
		return time.Time{}
	}
	return t
}
