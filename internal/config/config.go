package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iabetor/sentiscope/internal/sentiment"
)

// Config 是 sentiscope 的顶层配置结构。
type Config struct {
	Labels     LabelsConfig     `yaml:"labels"`
	Segment    SegmentConfig    `yaml:"segment"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Chart      ChartConfig      `yaml:"chart"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// LabelsConfig 标签变体及颜色、显示名称。
// Colors 和 Names 的键可以写英文或中文标签名，只需覆盖想改的项。
type LabelsConfig struct {
	Variant string            `yaml:"variant"` // binary 或 ternary
	Colors  map[string]string `yaml:"colors"`
	Names   map[string]string `yaml:"names"`
}

// SegmentConfig 分句配置。
type SegmentConfig struct {
	// Delimiters 中的每个字符都是分句符，为空使用 "，。！？"。
	Delimiters string `yaml:"delimiters"`
}

// ClassifierConfig 分类器配置。
type ClassifierConfig struct {
	Type     string   `yaml:"type"`     // http、openai、tencent
	Timeout  int      `yaml:"timeout"`  // 单句超时（秒）
	Fallback []string `yaml:"fallback"` // 主分类器失败后依次尝试的类型

	HTTP      HTTPClassifierConfig   `yaml:"http"`
	OpenAI    OpenAIClassifierConfig `yaml:"openai"`
	Tencent   TencentConfig          `yaml:"tencent"`
	Translate TranslateConfig        `yaml:"translate"`
	RateLimit RateLimitConfig        `yaml:"rate_limit"`
}

// HTTPClassifierConfig Hugging Face Inference 兼容接口。
type HTTPClassifierConfig struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"`
	APIKey   string            `yaml:"api_key"`
	LabelMap map[string]string `yaml:"label_map"`
	Softmax  bool              `yaml:"softmax"`
}

// OpenAIClassifierConfig 大模型分类器配置。
type OpenAIClassifierConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// TencentConfig 腾讯云 NLP 情感分析配置。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
}

// TranslateConfig 腾讯云机器翻译配置。未填写密钥时沿用 tencent 段的密钥。
type TranslateConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Target    string `yaml:"target"`
}

// RateLimitConfig 远端接口限流，RPS 为 0 表示不限流。
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PipelineConfig 流水线配置。
type PipelineConfig struct {
	// Workers 为并发分类的句子数，1 表示逐句顺序分类。
	Workers int `yaml:"workers"`
}

// ChartConfig 图表配置。
type ChartConfig struct {
	Enabled            *bool  `yaml:"enabled"`
	Path               string `yaml:"path"`
	AnnotationDecimals int    `yaml:"annotation_decimals"`
	Width              int    `yaml:"width"`
	Height             int    `yaml:"height"`
	Title              string `yaml:"title"`
}

// IsEnabled 未配置时默认渲染图表。
func (c ChartConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// DatabaseConfig 历史记录数据库配置。
type DatabaseConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled 未配置时默认保存历史。
func (c DatabaseConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout"`  // 秒
	WriteTimeout int    `yaml:"write_timeout"` // 秒
	MaxBodyBytes string `yaml:"max_body"`      // 如 1M
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console 或 json
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，展开环境变量并填充默认值。
func Parse(data []byte) (*Config, error) {
	// 展开环境变量，如 ${SENTISCOPE_OPENAI_API_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// Default 返回只含默认值的配置。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Labels.Variant == "" {
		cfg.Labels.Variant = string(sentiment.VariantBinary)
	}
	if cfg.Classifier.Type == "" {
		cfg.Classifier.Type = "http"
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 30
	}
	// 默认模型只输出负向和正向，三分类需要自行配置模型地址
	if cfg.Classifier.HTTP.URL == "" && cfg.Labels.Variant == string(sentiment.VariantBinary) {
		cfg.Classifier.HTTP.URL = "https://api-inference.huggingface.co/models/uer/roberta-base-finetuned-jd-binary-chinese"
	}
	if cfg.Classifier.HTTP.LabelMap == nil && cfg.Labels.Variant == string(sentiment.VariantBinary) {
		// uer/roberta-base-finetuned-jd-binary-chinese 的输出标签
		cfg.Classifier.HTTP.LabelMap = map[string]string{
			"negative (stars 1, 2 and 3)": "negative",
			"positive (stars 4 and 5)":    "positive",
			"LABEL_0":                     "negative",
			"LABEL_1":                     "positive",
		}
	}
	if cfg.Classifier.OpenAI.Model == "" {
		cfg.Classifier.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Classifier.Translate.SecretID == "" {
		cfg.Classifier.Translate.SecretID = cfg.Classifier.Tencent.SecretID
	}
	if cfg.Classifier.Translate.SecretKey == "" {
		cfg.Classifier.Translate.SecretKey = cfg.Classifier.Tencent.SecretKey
	}
	if cfg.Classifier.Translate.Region == "" {
		cfg.Classifier.Translate.Region = cfg.Classifier.Tencent.Region
	}
	if cfg.Classifier.RateLimit.RPS > 0 && cfg.Classifier.RateLimit.Burst == 0 {
		cfg.Classifier.RateLimit.Burst = 1
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 1
	}
	if cfg.Chart.Path == "" {
		cfg.Chart.Path = "emotion_plot.png"
	}
	if cfg.Chart.AnnotationDecimals == 0 {
		cfg.Chart.AnnotationDecimals = 2
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = 1000
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = 600
	}
	if cfg.Database.Path == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = filepath.Join(home, ".sentiscope", "sentiscope.db")
		} else {
			cfg.Database.Path = "./.sentiscope-data/sentiscope.db"
		}
	} else if strings.HasPrefix(cfg.Database.Path, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = home + cfg.Database.Path[1:]
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120
	}
	if cfg.Server.MaxBodyBytes == "" {
		cfg.Server.MaxBodyBytes = "1M"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.Classifier.HTTP.APIKey = strings.TrimSpace(cfg.Classifier.HTTP.APIKey)
	cfg.Classifier.OpenAI.APIKey = strings.TrimSpace(cfg.Classifier.OpenAI.APIKey)
	cfg.Classifier.Tencent.SecretID = strings.TrimSpace(cfg.Classifier.Tencent.SecretID)
	cfg.Classifier.Tencent.SecretKey = strings.TrimSpace(cfg.Classifier.Tencent.SecretKey)
}
