package sentiment

// Record 是一句话及其情绪判定结果。创建后不再修改。
type Record struct {
	Sentence   string  `json:"sentence"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Labels 按顺序提取记录中的标签。
func Labels(records []Record) []Label {
	out := make([]Label, len(records))
	for i, r := range records {
		out[i] = r.Label
	}
	return out
}
