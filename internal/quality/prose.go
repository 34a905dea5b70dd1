package quality

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// ExtractProse normalizes markdown to plain prose: headings, code blocks
// and raw HTML are dropped entirely; links keep their text but lose their
// targets; emphasis wrappers and list markers disappear with the markup.
func ExtractProse(body string) string {
	src := []byte(body)
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindListItem, ast.KindBlockquote:
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindHeading, ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		case ast.KindCodeSpan, ast.KindRawHTML, ast.KindImage:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteString(" ")
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// WordCount counts prose words in a markdown body. Markup and code are
// excluded so short-form pages with heavy structure aren't overcounted.
func WordCount(body string) int {
	return len(strings.Fields(ExtractProse(body)))
}
