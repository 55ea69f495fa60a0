package pipeline

import (
	"strings"
	"unicode/utf8"
)

// DefaultDelimiters 是默认断句符：全角逗号、句号、感叹号、问号。
const DefaultDelimiters = "，。！？"

// Segmenter 按断句符把文本拆成句子。
type Segmenter struct {
	delimiters []rune
}

// NewSegmenter 用给定的断句符集合创建分句器，为空时使用 DefaultDelimiters。
func NewSegmenter(delimiters string) *Segmenter {
	if delimiters == "" {
		delimiters = DefaultDelimiters
	}
	return &Segmenter{delimiters: []rune(delimiters)}
}

// Segment 使用默认断句符分句。
func Segment(text string) []string {
	return NewSegmenter("").Segment(text)
}

// Segment 按出现顺序返回去除首尾空白后的非空句子，断句符本身被丢弃。
// 空文本或只含空白的文本返回空切片。
func (s *Segmenter) Segment(text string) []string {
	sentences := make([]string, 0)
	remaining := text
	for {
		sentence, rest, found := s.extractSentence(remaining)
		if !found {
			if r := strings.TrimSpace(remaining); r != "" {
				sentences = append(sentences, r)
			}
			return sentences
		}
		remaining = rest
		if sentence = strings.TrimSpace(sentence); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
}

// extractSentence 提取第一个断句符之前的片段（不含断句符）和剩余文本。
func (s *Segmenter) extractSentence(text string) (string, string, bool) {
	for i, r := range text {
		if s.isDelimiter(r) {
			return text[:i], text[i+utf8.RuneLen(r):], true
		}
	}
	return "", text, false
}

func (s *Segmenter) isDelimiter(r rune) bool {
	for _, d := range s.delimiters {
		if r == d {
			return true
		}
	}
	return false
}
