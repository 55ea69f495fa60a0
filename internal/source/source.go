// Package source 从文件、标准输入、网页和 RSS/Atom 订阅源读取待分析的文本。
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"

	"github.com/iabetor/sentiscope/internal/logger"
	"github.com/iabetor/sentiscope/internal/pipeline"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultFeedItems    = 10
	// MaxTextBytes 是单次读取的文本上限。
	MaxTextBytes = 1 << 20
)

// ErrEmpty 表示来源中没有可分析的文本。
var ErrEmpty = errors.New("[source] 没有可分析的文本")

// ReadFile 读取 UTF-8 文本文件。
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("[source] 打开文件失败: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read 读取 r 中的全部文本，超过 MaxTextBytes 时报错。
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxTextBytes+1))
	if err != nil {
		return "", fmt.Errorf("[source] 读取文本失败: %w", err)
	}
	if len(data) > MaxTextBytes {
		return "", fmt.Errorf("[source] 文本超过 %d 字节", MaxTextBytes)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// Fetcher 抓取网页正文和订阅源内容。
type Fetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	userAgent  string
	maxItems   int
	delimiters string // 与分句器一致
}

// NewFetcher 创建抓取器，timeout <= 0 时使用 15 秒。
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		userAgent:  "Sentiscope/1.0",
		maxItems:   defaultFeedItems,
		delimiters: pipeline.DefaultDelimiters,
	}
}

// WithDelimiters 设置分句符集合，应与流水线的分句配置一致。为空时保持默认。
func (f *Fetcher) WithDelimiters(delimiters string) *Fetcher {
	if delimiters != "" {
		f.delimiters = delimiters
	}
	return f
}

// WithMaxItems 设置订阅源最多读取的条目数。
func (f *Fetcher) WithMaxItems(n int) *Fetcher {
	if n > 0 {
		f.maxItems = n
	}
	return f
}

// FetchPage 抓取网页并提取可见文本，每个块级元素作为一段。
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	blocks, err := extractBlocks(io.LimitReader(body, MaxTextBytes))
	if err != nil {
		return "", fmt.Errorf("[source] 解析网页失败: %w", err)
	}
	text := joinParagraphs(blocks, f.delimiters)
	if text == "" {
		return "", ErrEmpty
	}
	logger.Infof("[source] 已抓取网页 %s（%d 段）", url, len(blocks))
	return text, nil
}

// FetchFeed 抓取 RSS/Atom 订阅源，把前若干条目的标题和摘要拼成文本。
func (f *Fetcher) FetchFeed(ctx context.Context, url string) (string, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	feed, err := f.parser.Parse(body)
	if err != nil {
		return "", fmt.Errorf("[source] 无法解析该 RSS 地址: %w", err)
	}

	n := len(feed.Items)
	if n > f.maxItems {
		n = f.maxItems
	}
	var parts []string
	for _, item := range feed.Items[:n] {
		if t := strings.TrimSpace(item.Title); t != "" {
			parts = append(parts, t)
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		if summary == "" {
			continue
		}
		blocks, err := extractBlocks(strings.NewReader(summary))
		if err != nil {
			logger.Debugf("[source] 条目 %q 摘要解析失败: %v", item.Title, err)
			continue
		}
		parts = append(parts, blocks...)
	}

	text := joinParagraphs(parts, f.delimiters)
	if text == "" {
		return "", ErrEmpty
	}
	logger.Infof("[source] 已抓取订阅源 %s（%d 条）", feed.Title, n)
	return text, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("[source] 创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[source] 请求 %s 失败: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("[source] 请求 %s 返回状态码 %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// joinParagraphs 拼接段落。段尾不是分句符时补一个，保证段落之间能被分开：
// 分句符含句号时补句号，否则补第一个分句符。
func joinParagraphs(parts []string, delimiters string) string {
	sep := '。'
	if !strings.ContainsRune(delimiters, sep) {
		for _, r := range delimiters {
			sep = r
			break
		}
	}

	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString(p)
		r := []rune(p)
		if !strings.ContainsRune(delimiters, r[len(r)-1]) {
			b.WriteRune(sep)
		}
	}
	return b.String()
}

// collapseSpace 合并连续空白为一个空格。
func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
