package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

func TestHTTPClassifier_NestedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer hf-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var body hfRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Inputs != "今天很开心" {
			t.Errorf("inputs = %q", body.Inputs)
		}
		fmt.Fprint(w, `[[{"label":"positive (stars 4 and 5)","score":0.9871},{"label":"negative (stars 1, 2 and 3)","score":0.0129}]]`)
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(HTTPConfig{
		URL:    server.URL,
		APIKey: "hf-key",
		LabelMap: map[string]string{
			"negative (stars 1, 2 and 3)": "negative",
			"positive (stars 4 and 5)":    "positive",
		},
	}, sentiment.Binary())
	require.NoError(t, err)

	pred, err := c.Classify(context.Background(), "今天很开心")
	require.NoError(t, err)
	assert.Equal(t, sentiment.Positive, pred.Label)
	assert.Equal(t, 0.9871, pred.Confidence)
	assert.Equal(t, []float64{0.0129, 0.9871}, pred.Probs)
}

func TestHTTPClassifier_FlatResponseWithParsedLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"label":"Neutral","score":0.6},{"label":"negative","score":0.1},{"label":"positive","score":0.3}]`)
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(HTTPConfig{URL: server.URL}, sentiment.Ternary())
	require.NoError(t, err)

	pred, err := c.Classify(context.Background(), "还行")
	require.NoError(t, err)
	assert.Equal(t, sentiment.Neutral, pred.Label)
	assert.Equal(t, 0.6, pred.Confidence)
}

func TestHTTPClassifier_Softmax(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[{"label":"LABEL_0","score":-1.5},{"label":"LABEL_1","score":2.5}]]`)
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(HTTPConfig{
		URL:      server.URL,
		LabelMap: map[string]string{"LABEL_0": "negative", "LABEL_1": "positive"},
		Softmax:  true,
	}, sentiment.Binary())
	require.NoError(t, err)

	pred, err := c.Classify(context.Background(), "好")
	require.NoError(t, err)
	assert.Equal(t, sentiment.Positive, pred.Label)
	assert.Equal(t, 0.982, pred.Confidence)
}

func TestHTTPClassifier_TruncatesInput(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body hfRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.Inputs
		fmt.Fprint(w, `[[{"label":"negative","score":0.4},{"label":"positive","score":0.6}]]`)
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(HTTPConfig{URL: server.URL}, sentiment.Binary())
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), strings.Repeat("长", MaxInputRunes+10))
	require.NoError(t, err)
	assert.Equal(t, MaxInputRunes, len([]rune(got)))
}

func TestHTTPClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":"loading"}`, "状态码 503"},
		{"bad json", http.StatusOK, `not json`, "解析响应失败"},
		{"empty", http.StatusOK, `[]`, "响应为空"},
		{"unknown label", http.StatusOK, `[[{"label":"LABEL_9","score":1}]]`, "未知的模型标签"},
		{"missing label", http.StatusOK, `[[{"label":"positive","score":1}]]`, "响应缺少标签"},
		{"duplicate label", http.StatusOK, `[[{"label":"positive","score":0.5},{"label":"pos","score":0.5}]]`, "重复"},
		{"bad distribution", http.StatusOK, `[[{"label":"positive","score":0.5},{"label":"negative","score":0.1}]]`, "概率和"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c, err := NewHTTPClassifier(HTTPConfig{URL: server.URL, Name: "hf"}, sentiment.Binary())
			require.NoError(t, err)

			_, err = c.Classify(context.Background(), "句子")
			var ce *sentiment.ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "hf", ce.Classifier)
			assert.Equal(t, "句子", ce.Sentence)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPClassifier_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(HTTPConfig{URL: server.URL}, sentiment.Binary())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Classify(ctx, "慢")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewHTTPClassifier_Config(t *testing.T) {
	_, err := NewHTTPClassifier(HTTPConfig{}, sentiment.Binary())
	var ce *sentiment.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "classifier.http.url", ce.Field)

	_, err = NewHTTPClassifier(HTTPConfig{
		URL:      "http://localhost",
		LabelMap: map[string]string{"LABEL_2": "neutral"},
	}, sentiment.Binary())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "classifier.http.label_map.LABEL_2", ce.Field)
}
