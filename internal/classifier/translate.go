package classifier

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Translator 把文本翻译成目标语言。
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// TMTConfig 是腾讯云机器翻译的连接信息。
type TMTConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Target    string // 目标语言，默认 zh
}

// TMTTranslator 使用腾讯云机器翻译。
type TMTTranslator struct {
	client *tmt.Client
	target string
}

// NewTMTTranslator 创建腾讯云翻译器。
func NewTMTTranslator(cfg TMTConfig) (*TMTTranslator, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, &sentiment.ConfigurationError{Field: "classifier.translate", Reason: "secret_id 和 secret_key 不能为空"}
	}
	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tmt.tencentcloudapi.com"

	region := cfg.Region
	if region == "" {
		region = "ap-guangzhou"
	}
	client, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[classifier] 创建翻译客户端失败: %w", err)
	}

	target := cfg.Target
	if target == "" {
		target = "zh"
	}
	logger.Info("[classifier] 翻译已初始化")
	return &TMTTranslator{client: client, target: target}, nil
}

// Translate 自动检测源语言并翻译成目标语言。
func (t *TMTTranslator) Translate(ctx context.Context, text string) (string, error) {
	request := tmt.NewTextTranslateRequest()
	request.SetContext(ctx)
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr("auto")
	request.Target = common.StringPtr(t.target)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.client.TextTranslate(request)
	if err != nil {
		return "", fmt.Errorf("翻译请求失败: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return "", fmt.Errorf("翻译响应为空")
	}

	result := *response.Response.TargetText
	detected := ""
	if response.Response.Source != nil {
		detected = *response.Response.Source
	}
	logger.Debugf("[classifier] 翻译完成: %s -> %s", detected, t.target)
	return result, nil
}

// Translating 在分类前把不含汉字的句子翻译成中文，默认模型只理解中文。
// 返回的预测结果对应原句，记录中保存的也仍是原句。
type Translating struct {
	inner      Classifier
	translator Translator
	timeout    time.Duration
}

// WithTranslation 包装分类器，每次翻译调用受 d 限时，d <= 0 时使用 DefaultTimeout。
// translator 为 nil 时原样返回 c。
func WithTranslation(c Classifier, translator Translator, d time.Duration) Classifier {
	if translator == nil {
		return c
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Translating{inner: c, translator: translator, timeout: d}
}

func (t *Translating) Name() string               { return t.inner.Name() }
func (t *Translating) Labels() sentiment.LabelSet { return t.inner.Labels() }

func (t *Translating) Classify(ctx context.Context, sentence string) (Prediction, error) {
	if !needsTranslation(sentence) {
		return t.inner.Classify(ctx, sentence)
	}
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	translated, err := t.translator.Translate(tctx, sentence)
	cancel()
	if err != nil {
		return Prediction{}, wrapErr(t.Name(), sentence, err)
	}
	return t.inner.Classify(ctx, translated)
}

// needsTranslation 判断句子是否含字母但不含汉字。
func needsTranslation(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
