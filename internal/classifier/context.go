package classifier

import (
	"fmt"
	"time"

	"github.com/iabetor/sentiscope/internal/config"
	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Context 持有进程内唯一的分类器链和生效的标签集合。
// 启动时创建一次，之后只读，以指针传给流水线。
type Context struct {
	labels     sentiment.LabelSet
	classifier Classifier
}

// NewContext 按配置构建分类器链：各分类器依次加上限流和超时，
// 多个时组成降级链，再按需加上翻译和指标。observer 可为 nil。
func NewContext(cfg *config.Config, observer Observer) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	labels, err := cfg.LabelSet()
	if err != nil {
		return nil, err
	}

	cc := cfg.Classifier
	types := append([]string{cc.Type}, cc.Fallback...)
	chain := make([]Classifier, 0, len(types))
	for _, t := range types {
		c, err := build(cfg, t, labels)
		if err != nil {
			return nil, err
		}
		if cc.RateLimit.RPS > 0 {
			c = WithRateLimit(c, cc.RateLimit.RPS, cc.RateLimit.Burst)
		}
		c = WithTimeout(c, time.Duration(cc.Timeout)*time.Second)
		chain = append(chain, c)
	}

	var c Classifier = chain[0]
	if len(chain) > 1 {
		fb, err := NewFallback(chain...)
		if err != nil {
			return nil, err
		}
		c = fb
	}

	if cc.Translate.Enabled {
		tr, err := NewTMTTranslator(TMTConfig{
			SecretID:  cc.Translate.SecretID,
			SecretKey: cc.Translate.SecretKey,
			Region:    cc.Translate.Region,
			Target:    cc.Translate.Target,
		})
		if err != nil {
			return nil, err
		}
		c = WithTranslation(c, tr, time.Duration(cc.Timeout)*time.Second)
	}
	c = WithObserver(c, observer)

	ctx, err := NewContextWith(labels, c)
	if err != nil {
		return nil, err
	}
	logger.Infof("[classifier] 分类器已就绪: %s (%s)", c.Name(), labels.Variant)
	return ctx, nil
}

// NewContextWith 用现成的分类器创建 Context，测试中用来注入假分类器。
func NewContextWith(labels sentiment.LabelSet, c Classifier) (*Context, error) {
	if err := labels.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &sentiment.ConfigurationError{Field: "classifier", Reason: "分类器不能为空"}
	}
	if !c.Labels().SameLabels(labels) {
		return nil, &sentiment.ConfigurationError{
			Field: "labels.variant",
			Reason: fmt.Sprintf("分类器 %s 输出 %v，与配置的 %s 变体 %v 不一致",
				c.Name(), c.Labels().Labels, labels.Variant, labels.Labels),
		}
	}
	return &Context{labels: labels, classifier: c}, nil
}

// Labels 返回生效的标签集合（含颜色和显示名称）。
func (c *Context) Labels() sentiment.LabelSet { return c.labels }

// Classifier 返回分类器链。
func (c *Context) Classifier() Classifier { return c.classifier }

func build(cfg *config.Config, typ string, labels sentiment.LabelSet) (Classifier, error) {
	cc := cfg.Classifier
	switch typ {
	case "http":
		return NewHTTPClassifier(HTTPConfig{
			Name:     cc.HTTP.Name,
			URL:      cc.HTTP.URL,
			APIKey:   cc.HTTP.APIKey,
			LabelMap: cc.HTTP.LabelMap,
			Softmax:  cc.HTTP.Softmax,
			Timeout:  time.Duration(cc.Timeout) * time.Second,
		}, labels)
	case "openai":
		return NewOpenAIClassifier(OpenAIConfig{
			BaseURL: cc.OpenAI.BaseURL,
			APIKey:  cc.OpenAI.APIKey,
			Model:   cc.OpenAI.Model,
		}, labels)
	case "tencent":
		return NewTencentClassifier(TencentConfig{
			SecretID:  cc.Tencent.SecretID,
			SecretKey: cc.Tencent.SecretKey,
			Region:    cc.Tencent.Region,
			Endpoint:  cc.Tencent.Endpoint,
		}, labels)
	}
	return nil, &sentiment.ConfigurationError{Field: "classifier.type", Reason: fmt.Sprintf("不支持的分类器类型 %q", typ)}
}
