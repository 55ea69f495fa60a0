package source

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 内容不可见的元素
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

// 块级元素，开始或结束时切分段落
var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Article: true, atom.Section: true, atom.Blockquote: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Title: true,
	atom.Header: true, atom.Footer: true, atom.Pre: true,
}

// extractBlocks 从 HTML 中提取可见文本，按块级元素分段，实体已解码。
// 纯文本输入会原样作为一段返回。
func extractBlocks(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var (
		blocks []string
		cur    strings.Builder
		depth  int // 位于不可见元素内的层数
	)
	flush := func() {
		if s := collapseSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				flush()
				return blocks, nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tt := z.Token()
			a := tt.DataAtom
			if skipped[a] && tt.Type == html.StartTagToken {
				depth++
			}
			if blockLevel[a] {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] && depth > 0 {
				depth--
			}
			if blockLevel[a] {
				flush()
			}
		case html.TextToken:
			if depth == 0 {
				cur.Write(z.Text())
			}
		}
	}
}
