package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/argus/app/database"
)

// Channel describes the republished intel feed.
type Channel struct {
	Title       string
	Link        string
	SelfLink    string
	Description string
	Version     string
}

// Generator renders enriched articles as an RSS 2.0 document. Threat type
// and severity become categories, extracted indicators are appended to the
// description.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

func (g *Generator) Run(channel Channel, articles []database.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", cmp.Or(channel.Title, "Argus threat intelligence"), 4)
	writeElement(&buf, "link", channel.Link, 4)
	writeElement(&buf, "description", cmp.Or(channel.Description, "Enriched threat intelligence articles"), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := g.now()
	if len(articles) > 0 {
		lastBuildDate = articleDate(articles[0])
	}
	writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", strings.TrimSpace("Argus "+channel.Version), 4)

	for _, article := range articles {
		writeArticle(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func writeArticle(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(article.ID))
	buf.WriteString("</guid>\n")

	writeElement(buf, "title", article.Title, 6)
	writeElement(buf, "link", article.URL, 6)
	writeElement(buf, "description", describe(article), 6)

	if article.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(article.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	writeElement(buf, "pubDate", articleDate(article).Format(time.RFC1123Z), 6)

	if article.ThreatType != nil {
		writeElement(buf, "category", *article.ThreatType, 6)
	}
	if article.Severity != nil {
		writeElement(buf, "category", "severity:"+*article.Severity, 6)
	}
	// RSS <source> requires the origin feed URL, which is not stored.
	if article.Source != "" {
		buf.WriteString(`      <category domain="source">`)
		xml.EscapeText(buf, []byte(article.Source))
		buf.WriteString("</category>\n")
	}

	buf.WriteString("    </item>\n")
}

func describe(article database.Article) string {
	description := "No summary available"
	if article.Summary != nil && *article.Summary != "" {
		description = *article.Summary
	}

	if article.IOCs.Count() == 0 {
		return description
	}

	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nIndicators:")
	for _, category := range article.IOCs.Categories() {
		fmt.Fprintf(&b, "\n%s: %s", category, strings.Join(article.IOCs[category], ", "))
	}
	return b.String()
}

func articleDate(article database.Article) time.Time {
	if article.PublishedDate != nil {
		return *article.PublishedDate
	}
	return article.CreatedAt
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
