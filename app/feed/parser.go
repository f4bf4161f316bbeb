package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses RSS, Atom or JSON feed data into normalized items.
func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	link := strings.TrimSpace(item.Link)
	normalized := Item{
		GUID:        cmp.Or(strings.TrimSpace(item.GUID), link),
		Title:       item.Title,
		Link:        link,
		Description: item.Description,
		Content:     item.Content,
		Categories:  item.Categories,
	}

	// Atom entries may only carry <updated>.
	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		normalized.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		normalized.PublishedAt = &updated
	}

	normalized.Authors = p.extractAuthors(item)

	return normalized
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author == nil {
				continue
			}
			if formatted := p.formatAuthor(author.Name, author.Email); formatted != "" {
				authors = append(authors, formatted)
			}
		}
	} else if item.Author != nil {
		if formatted := p.formatAuthor(item.Author.Name, item.Author.Email); formatted != "" {
			authors = append(authors, formatted)
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s (%s)", email, name)
	case name != "":
		return name
	default:
		return email
	}
}
