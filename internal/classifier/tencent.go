package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tchttp "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/http"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/sentiment"
)

// TencentConfig 是腾讯云 NLP 情感分析的连接信息。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Endpoint  string
}

const (
	nlpService  = "nlp"
	nlpVersion  = "2019-04-08"
	nlpAction   = "AnalyzeSentiment"
	nlpEndpoint = "nlp.tencentcloudapi.com"
)

// TencentClassifier 调用腾讯云 NLP 的 AnalyzeSentiment 接口，只支持三分类。
type TencentClassifier struct {
	client *common.Client
	labels sentiment.LabelSet
}

// NewTencentClassifier 创建腾讯云情感分析分类器。
func NewTencentClassifier(cfg TencentConfig, labels sentiment.LabelSet) (*TencentClassifier, error) {
	if labels.Variant != sentiment.VariantTernary {
		return nil, &sentiment.ConfigurationError{
			Field:  "classifier.type",
			Reason: fmt.Sprintf("腾讯云情感分析只支持 ternary 变体，当前为 %s", labels.Variant),
		}
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, &sentiment.ConfigurationError{Field: "classifier.tencent", Reason: "secret_id 和 secret_key 不能为空"}
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = nlpEndpoint
	if cfg.Endpoint != "" {
		cpf.HttpProfile.Endpoint = cfg.Endpoint
	}
	region := cfg.Region
	if region == "" {
		region = "ap-guangzhou"
	}

	client := common.NewCommonClient(credential, region, cpf)
	logger.Info("[classifier] 腾讯云情感分析已初始化")
	return &TencentClassifier{client: client, labels: labels}, nil
}

func (c *TencentClassifier) Name() string               { return "tencent" }
func (c *TencentClassifier) Labels() sentiment.LabelSet { return c.labels }

type nlpSentimentResponse struct {
	Response struct {
		Positive  *float64 `json:"Positive"`
		Neutral   *float64 `json:"Neutral"`
		Negative  *float64 `json:"Negative"`
		Sentiment string   `json:"Sentiment"`
		Error     *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"Response"`
}

// Classify 调用 AnalyzeSentiment 并按负向、中性、正向顺序组装分布。
// SDK 的重试和连接等待不一定遵守 ctx，这里在单独的 goroutine 中等待，ctx 结束时直接返回。
func (c *TencentClassifier) Classify(ctx context.Context, sentence string) (Prediction, error) {
	sentence = Truncate(sentence, MaxInputRunes)

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := c.send(ctx, sentence)
		done <- result{body, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return Prediction{}, wrapErr(c.Name(), sentence, ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return Prediction{}, wrapErr(c.Name(), sentence, fmt.Errorf("请求失败: %w", r.err))
	}

	probs, err := parseNLPSentiment(r.body)
	if err != nil {
		return Prediction{}, wrapErr(c.Name(), sentence, err)
	}
	pred, err := Decide(c.labels, probs)
	if err != nil {
		return Prediction{}, wrapErr(c.Name(), sentence, err)
	}
	return pred, nil
}

func (c *TencentClassifier) send(ctx context.Context, sentence string) ([]byte, error) {
	request := tchttp.NewCommonRequest(nlpService, nlpVersion, nlpAction)
	request.SetContext(ctx)
	if err := request.SetActionParameters(map[string]interface{}{"Text": sentence}); err != nil {
		return nil, err
	}
	response := tchttp.NewCommonResponse()
	if err := c.client.Send(request, response); err != nil {
		return nil, err
	}
	return response.GetBody(), nil
}

// parseNLPSentiment 解析响应体，返回 [negative, neutral, positive]。
func parseNLPSentiment(body []byte) ([]float64, error) {
	var resp nlpSentimentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if e := resp.Response.Error; e != nil {
		return nil, fmt.Errorf("接口返回错误 %s: %s", e.Code, e.Message)
	}
	r := resp.Response
	if r.Positive == nil || r.Neutral == nil || r.Negative == nil {
		return nil, fmt.Errorf("响应缺少概率字段")
	}
	return []float64{*r.Negative, *r.Neutral, *r.Positive}, nil
}
