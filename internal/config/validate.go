package config

import (
	"fmt"
	"strings"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// 支持的分类器类型。
var classifierTypes = map[string]bool{
	"http":    true,
	"openai":  true,
	"tencent": true,
}

// LabelSet 根据 labels 段构建标签集合并校验。
func (c *Config) LabelSet() (sentiment.LabelSet, error) {
	set, err := sentiment.NewLabelSet(sentiment.Variant(strings.ToLower(c.Labels.Variant)))
	if err != nil {
		return sentiment.LabelSet{}, err
	}

	colors, err := parseLabelKeys("labels.colors", c.Labels.Colors)
	if err != nil {
		return sentiment.LabelSet{}, err
	}
	names, err := parseLabelKeys("labels.names", c.Labels.Names)
	if err != nil {
		return sentiment.LabelSet{}, err
	}
	set = set.WithColors(colors).WithNames(names)

	if err := set.Validate(); err != nil {
		return sentiment.LabelSet{}, err
	}
	return set, nil
}

func parseLabelKeys(field string, m map[string]string) (map[sentiment.Label]string, error) {
	out := make(map[sentiment.Label]string, len(m))
	for k, v := range m {
		l, ok := sentiment.ParseLabel(k)
		if !ok {
			return nil, &sentiment.ConfigurationError{Field: field + "." + k, Reason: "未知标签"}
		}
		out[l] = v
	}
	return out, nil
}

// Validate 检查配置的一致性，发现问题返回 *sentiment.ConfigurationError。
// 应在处理任何分析请求之前调用。
func (c *Config) Validate() error {
	labels, err := c.LabelSet()
	if err != nil {
		return err
	}

	cc := c.Classifier
	types := append([]string{cc.Type}, cc.Fallback...)
	seen := make(map[string]bool, len(types))
	for i, t := range types {
		field := "classifier.type"
		if i > 0 {
			field = fmt.Sprintf("classifier.fallback[%d]", i-1)
		}
		if !classifierTypes[t] {
			return &sentiment.ConfigurationError{Field: field, Reason: fmt.Sprintf("不支持的分类器类型 %q", t)}
		}
		if seen[t] {
			return &sentiment.ConfigurationError{Field: field, Reason: fmt.Sprintf("分类器 %q 重复", t)}
		}
		seen[t] = true
		if err := c.validateClassifier(field, t, labels); err != nil {
			return err
		}
	}

	if cc.Timeout < 0 {
		return &sentiment.ConfigurationError{Field: "classifier.timeout", Reason: "不能为负数"}
	}
	if cc.RateLimit.RPS < 0 {
		return &sentiment.ConfigurationError{Field: "classifier.rate_limit.rps", Reason: "不能为负数"}
	}
	if cc.Translate.Enabled && (cc.Translate.SecretID == "" || cc.Translate.SecretKey == "") {
		return &sentiment.ConfigurationError{Field: "classifier.translate", Reason: "启用翻译需要腾讯云密钥"}
	}
	if c.Pipeline.Workers < 1 {
		return &sentiment.ConfigurationError{Field: "pipeline.workers", Reason: "至少为 1"}
	}
	if c.Chart.AnnotationDecimals < 0 || c.Chart.AnnotationDecimals > 6 {
		return &sentiment.ConfigurationError{Field: "chart.annotation_decimals", Reason: "应在 0 到 6 之间"}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &sentiment.ConfigurationError{Field: "log.level", Reason: fmt.Sprintf("不支持的日志级别 %q", c.Log.Level)}
	}
	return nil
}

func (c *Config) validateClassifier(field, typ string, labels sentiment.LabelSet) error {
	cc := c.Classifier
	switch typ {
	case "http":
		if strings.TrimSpace(cc.HTTP.URL) == "" {
			reason := "不能为空"
			if labels.Variant != sentiment.VariantBinary {
				reason = fmt.Sprintf("%s 需要配置模型地址", labels.Variant)
			}
			return &sentiment.ConfigurationError{Field: "classifier.http.url", Reason: reason}
		}
		for from, to := range cc.HTTP.LabelMap {
			l, ok := sentiment.ParseLabel(to)
			if !ok || !labels.Contains(l) {
				return &sentiment.ConfigurationError{
					Field:  "classifier.http.label_map." + from,
					Reason: fmt.Sprintf("目标标签 %q 不在变体 %s 中", to, labels.Variant),
				}
			}
		}
	case "openai":
		if cc.OpenAI.APIKey == "" {
			return &sentiment.ConfigurationError{Field: "classifier.openai.api_key", Reason: "不能为空"}
		}
	case "tencent":
		if labels.Variant != sentiment.VariantTernary {
			return &sentiment.ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("腾讯云情感分析只支持 ternary 变体，当前为 %s", labels.Variant),
			}
		}
		if cc.Tencent.SecretID == "" || cc.Tencent.SecretKey == "" {
			return &sentiment.ConfigurationError{Field: "classifier.tencent", Reason: "secret_id 和 secret_key 不能为空"}
		}
	}
	return nil
}
