package enrichment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from feed HTML so that prompt budgets are spent on
// prose. Text without markup is returned unchanged.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}
