package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// OpenAIConfig 描述使用大模型打分的分类器。
type OpenAIConfig struct {
	Name    string
	BaseURL string // 为空使用官方地址
	APIKey  string
	Model   string
}

// llmScores 是要求模型输出的 JSON 结构。二分类时 neutral 必须为 0。
type llmScores struct {
	Negative float64 `json:"negative" jsonschema:"required,description=Probability that the sentence is negative"`
	Neutral  float64 `json:"neutral" jsonschema:"required,description=Probability that the sentence is neutral (0 for binary)"`
	Positive float64 `json:"positive" jsonschema:"required,description=Probability that the sentence is positive"`
}

var llmScoresSchema = generateSchema[llmScores]()

const openAIInstructions = `你是中文情绪分类器。对用户给出的单个句子，输出它属于各个情绪类别的概率。
概率都在 0 到 1 之间，且总和为 1。只输出 JSON。`

// OpenAIClassifier 通过 OpenAI Responses 接口的结构化输出给句子打分。
type OpenAIClassifier struct {
	name   string
	model  string
	client *openai.Client
	labels sentiment.LabelSet
}

// NewOpenAIClassifier 创建大模型分类器。
func NewOpenAIClassifier(cfg OpenAIConfig, labels sentiment.LabelSet) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, &sentiment.ConfigurationError{Field: "classifier.openai.api_key", Reason: "不能为空"}
	}
	if cfg.Model == "" {
		return nil, &sentiment.ConfigurationError{Field: "classifier.openai.model", Reason: "不能为空"}
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	name := cfg.Name
	if name == "" {
		name = "openai:" + cfg.Model
	}
	return &OpenAIClassifier{name: name, model: cfg.Model, client: &client, labels: labels}, nil
}

func (c *OpenAIClassifier) Name() string               { return c.name }
func (c *OpenAIClassifier) Labels() sentiment.LabelSet { return c.labels }

// Classify 请求模型输出各标签概率，再按本地标签顺序取值。
func (c *OpenAIClassifier) Classify(ctx context.Context, sentence string) (Prediction, error) {
	sentence = Truncate(sentence, MaxInputRunes)

	instructions := openAIInstructions
	if c.labels.Variant == sentiment.VariantBinary {
		instructions += "\n只区分负向和正向，neutral 固定为 0。"
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(200),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(sentence, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "SentenceSentiment",
					Schema:      llmScoresSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Sentence sentiment probabilities"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("请求失败: %w", err))
	}

	var scores llmScores
	if err := decodeModelJSON(resp.OutputText(), &scores); err != nil {
		return Prediction{}, wrapErr(c.name, sentence, err)
	}

	probs := make([]float64, len(c.labels.Labels))
	for i, l := range c.labels.Labels {
		switch l {
		case sentiment.Negative:
			probs[i] = scores.Negative
		case sentiment.Neutral:
			probs[i] = scores.Neutral
		case sentiment.Positive:
			probs[i] = scores.Positive
		}
	}
	pred, err := Decide(c.labels, normalize(probs))
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, err)
	}
	return pred, nil
}

// normalize 把模型给出的分数归一化。大模型的概率和经常略偏离 1。
func normalize(probs []float64) []float64 {
	sum := 0.0
	for _, p := range probs {
		if p < 0 {
			return probs
		}
		sum += p
	}
	if sum <= 0 {
		return probs
	}
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = p / sum
	}
	return out
}

// decodeModelJSON 从模型输出中取出第一个 JSON 对象并解析。
func decodeModelJSON(s string, v any) error {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("模型输出中没有 JSON: %q", Truncate(s, 100))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("解析模型输出失败: %w", err)
	}
	return nil
}

// generateSchema 生成符合 OpenAI strict 模式的 JSON Schema。
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	enforceStrict(m)
	return m
}

// enforceStrict 递归地关闭 additionalProperties 并把所有属性设为必填。
func enforceStrict(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if t, _ := schema["type"].(string); t == "object" {
		schema["additionalProperties"] = false
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		if len(required) > 0 {
			schema["required"] = required
		}
	}
	for _, p := range props {
		if pm, ok := p.(map[string]any); ok {
			enforceStrict(pm)
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		enforceStrict(items)
	}
}
