package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// HTTPConfig 描述 Hugging Face Inference 兼容的文本分类接口。
type HTTPConfig struct {
	Name     string
	URL      string
	APIKey   string
	LabelMap map[string]string // 模型标签 -> 本地标签，如 LABEL_0 -> negative
	Softmax  bool              // 接口返回 logits 时需要先做 softmax
	Timeout  time.Duration
}

// HTTPClassifier 通过 HTTP 调用远端文本分类模型。
// 请求体为 {"inputs": "..."}，响应为 [[{"label": "...", "score": 0.9}, ...]]。
type HTTPClassifier struct {
	name       string
	url        string
	apiKey     string
	labels     sentiment.LabelSet
	labelMap   map[string]sentiment.Label
	softmax    bool
	httpClient *http.Client
}

// NewHTTPClassifier 创建 HTTP 分类器。LabelMap 中的目标标签必须属于 labels。
func NewHTTPClassifier(cfg HTTPConfig, labels sentiment.LabelSet) (*HTTPClassifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &sentiment.ConfigurationError{Field: "classifier.http.url", Reason: "不能为空"}
	}

	labelMap := make(map[string]sentiment.Label, len(cfg.LabelMap))
	for from, to := range cfg.LabelMap {
		l, ok := sentiment.ParseLabel(to)
		if !ok || !labels.Contains(l) {
			return nil, &sentiment.ConfigurationError{
				Field:  "classifier.http.label_map." + from,
				Reason: fmt.Sprintf("目标标签 %q 不在变体 %s 中", to, labels.Variant),
			}
		}
		labelMap[strings.ToLower(from)] = l
	}

	name := cfg.Name
	if name == "" {
		name = "http"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClassifier{
		name:     name,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		labels:   labels,
		labelMap: labelMap,
		softmax:  cfg.Softmax,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *HTTPClassifier) Name() string               { return c.name }
func (c *HTTPClassifier) Labels() sentiment.LabelSet { return c.labels }

type hfRequest struct {
	Inputs string `json:"inputs"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify 调用远端模型并把返回的分数整理成本地标签顺序的分布。
func (c *HTTPClassifier) Classify(ctx context.Context, sentence string) (Prediction, error) {
	sentence = Truncate(sentence, MaxInputRunes)

	bodyBytes, err := json.Marshal(hfRequest{Inputs: sentence})
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("序列化请求体失败: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("请求失败: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("读取响应失败: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, wrapErr(c.name, sentence, fmt.Errorf("API 返回状态码 %d: %s", resp.StatusCode, string(body)))
	}

	scores, err := parseHFScores(body)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, err)
	}
	probs, err := c.distribution(scores)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, err)
	}
	pred, err := Decide(c.labels, probs)
	if err != nil {
		return Prediction{}, wrapErr(c.name, sentence, err)
	}
	return pred, nil
}

// parseHFScores 兼容 [[{...}]] 和 [{...}] 两种响应形状。
func parseHFScores(body []byte) ([]hfScore, error) {
	var nested [][]hfScore
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("响应为空")
		}
		return nested[0], nil
	}
	var flat []hfScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("响应为空")
	}
	return flat, nil
}

// distribution 把模型标签映射到本地标签顺序。每个本地标签必须恰好出现一次。
func (c *HTTPClassifier) distribution(scores []hfScore) ([]float64, error) {
	probs := make([]float64, len(c.labels.Labels))
	seen := make([]bool, len(c.labels.Labels))
	for _, s := range scores {
		l, ok := c.labelMap[strings.ToLower(s.Label)]
		if !ok {
			l, ok = sentiment.ParseLabel(s.Label)
		}
		if !ok {
			return nil, fmt.Errorf("未知的模型标签 %q", s.Label)
		}
		idx := c.labels.Index(l)
		if idx < 0 {
			return nil, fmt.Errorf("模型标签 %q 映射到 %s，不在变体 %s 中", s.Label, l, c.labels.Variant)
		}
		if seen[idx] {
			return nil, fmt.Errorf("标签 %s 重复出现", l)
		}
		seen[idx] = true
		probs[idx] = s.Score
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("响应缺少标签 %s", c.labels.Labels[i])
		}
	}
	if c.softmax {
		probs = Softmax(probs)
	}
	return probs, nil
}
