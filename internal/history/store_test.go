package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iabetor/sentiscope/internal/classifier"
	"github.com/iabetor/sentiscope/internal/database"
	"github.com/iabetor/sentiscope/internal/pipeline"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, sentiment.Binary(), 2)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	return s
}

// newTestPipeline 含“好”的句子判为正向，其余判为负向。
func newTestPipeline(t *testing.T, hooks ...pipeline.Hook) *pipeline.Pipeline {
	t.Helper()
	labels := sentiment.Binary()
	c := classifier.NewFunc("keyword", labels, func(_ context.Context, s string) ([]float64, error) {
		if strings.Contains(s, "好") {
			return []float64{0.1, 0.9}, nil
		}
		return []float64{0.8, 0.2}, nil
	})
	cctx, err := classifier.NewContextWith(labels, c)
	if err != nil {
		t.Fatalf("NewContextWith 失败: %v", err)
	}
	return pipeline.New(cctx, pipeline.Options{Hooks: hooks})
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	p := newTestPipeline(t)
	ctx := context.Background()

	a, err := p.Analyze(ctx, "今天天氣很好，但是下雨了。")
	if err != nil {
		t.Fatalf("Analyze 失败: %v", err)
	}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if got.Text != a.Text || got.Variant != a.Variant {
		t.Errorf("got %+v", got)
	}
	if len(got.Records) != 2 {
		t.Fatalf("记录数 = %d, want 2", len(got.Records))
	}
	for i := range a.Records {
		if got.Records[i] != a.Records[i] {
			t.Errorf("第 %d 句 = %+v, want %+v", i+1, got.Records[i], a.Records[i])
		}
	}
	if got.Stats.Transitions != 1 {
		t.Errorf("Transitions = %d, want 1", got.Stats.Transitions)
	}
	if got.Stats.Get(sentiment.Positive).Count != 1 {
		t.Errorf("positive count = %d", got.Stats.Get(sentiment.Positive).Count)
	}
	if len(got.Series) != 2 || got.Series[0].Annotation != "正向 0.90" {
		t.Errorf("Series = %+v", got.Series)
	}
	if !got.CreatedAt.Equal(a.CreatedAt.Truncate(time.Nanosecond)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}
}

func TestStore_GetOtherVariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	records := []sentiment.Record{
		{Sentence: "還行", Label: sentiment.Neutral, Confidence: 0.6},
		{Sentence: "很好", Label: sentiment.Positive, Confidence: 0.9},
	}
	a := &pipeline.Analysis{
		ID:        "ternary-1",
		Text:      "還行，很好。",
		Variant:   sentiment.VariantTernary,
		Records:   records,
		CreatedAt: time.Now(),
	}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	got, err := s.Get(ctx, "ternary-1")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if len(got.Series) != 2 {
		t.Fatalf("Series = %+v", got.Series)
	}
	if got.Series[0].Color != "gray" || got.Series[0].Annotation != "中性 0.60" {
		t.Errorf("中性点 = %+v", got.Series[0])
	}
	if got.Series[1].Color != "green" || got.Series[1].Annotation != "正向 0.90" {
		t.Errorf("正向点 = %+v", got.Series[1])
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_AsHook(t *testing.T) {
	s := newTestStore(t)
	p := newTestPipeline(t, s)
	ctx := context.Background()

	for _, text := range []string{"第一段很好。", "第二段不行。", ""} {
		if _, err := p.Analyze(ctx, text); err != nil {
			t.Fatalf("Analyze 失败: %v", err)
		}
	}
	if n := s.Count(); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestStore_ListOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		a := &pipeline.Analysis{
			ID:        id,
			Text:      strings.Repeat("好", 50),
			Variant:   sentiment.VariantBinary,
			Records:   []sentiment.Record{{Sentence: "好", Label: sentiment.Positive, Confidence: 0.9}},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Elapsed:   1500 * time.Millisecond,
		}
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("Save 失败: %v", err)
		}
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "c" || list[1].ID != "b" {
		t.Errorf("顺序错误: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].SentenceCount != 1 || list[0].Elapsed != 1500*time.Millisecond {
		t.Errorf("摘要 = %+v", list[0])
	}
	if !strings.HasSuffix(list[0].Preview, "…") || len([]rune(list[0].Preview)) != previewRunes+1 {
		t.Errorf("Preview = %q", list[0].Preview)
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("默认数量下 len = %d, want 3", len(all))
	}
}

func TestStore_DuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := &pipeline.Analysis{
		ID:        "dup",
		Text:      "好。",
		Variant:   sentiment.VariantBinary,
		Records:   []sentiment.Record{{Sentence: "好", Label: sentiment.Positive, Confidence: 0.9}},
		CreatedAt: time.Now(),
	}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if err := s.Save(ctx, a); err == nil {
		t.Fatal("重复 ID 应保存失败")
	}

	got, err := s.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if len(got.Records) != 1 {
		t.Errorf("记录数 = %d, want 1", len(got.Records))
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := &pipeline.Analysis{ID: "x", Text: "好。", Variant: sentiment.VariantBinary, CreatedAt: time.Now()}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if err := s.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if err := s.Delete(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("再次删除 err = %v, want ErrNotFound", err)
	}
}
