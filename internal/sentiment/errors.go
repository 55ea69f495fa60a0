package sentiment

import "fmt"

// ClassificationError 表示分类器无法给出概率分布（推理失败、超时、资源不可用等）。
type ClassificationError struct {
	Classifier string
	Sentence   string
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("[classifier] %s 分类失败 (%q): %v", e.Classifier, preview(e.Sentence, 20), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ConfigurationError 表示启动时发现的配置不一致，属于致命错误。
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("[config] 配置错误 %s: %s", e.Field, e.Reason)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
