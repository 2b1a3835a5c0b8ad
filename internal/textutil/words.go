package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PlainText returns the visible text of an HTML fragment with script and
// style elements removed and whitespace collapsed. Text nodes are joined with
// spaces so adjacent block elements do not run together. Input that fails to
// parse is returned with whitespace collapsed.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script,noscript,style").Remove()

	var words []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, node := range doc.Nodes {
		walk(node)
	}
	return strings.Join(words, " ")
}

// WordCount counts whitespace separated words in the visible text of each
// HTML fragment.
func WordCount(fragments ...string) int {
	total := 0
	for _, fragment := range fragments {
		total += len(strings.Fields(PlainText(fragment)))
	}
	return total
}
