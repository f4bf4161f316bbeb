package feed

import (
	"log/slog"
	"slices"
	"strings"
)

var filterFields = []string{"title", "description", "content", "authors", "link", "categories"}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops items rejected by the source's include/exclude rules.
func (f *Filterer) Run(items []Item, feedConfig *Config) []Item {
	if len(feedConfig.Filters) == 0 {
		return items
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if reason, rejected := f.rejects(item, feedConfig.Filters); rejected {
			slog.Debug("Item filtered", "feed", feedConfig.Name, "link", item.Link, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) rejects(item Item, filters []ConfigFilter) (string, bool) {
	for _, filter := range filters {
		value := strings.ToLower(fieldValue(item, filter.Field))

		for _, exclude := range filter.Excludes {
			if strings.Contains(value, strings.ToLower(exclude)) {
				return filter.Field + " contains '" + exclude + "'", true
			}
		}

		if len(filter.Includes) > 0 && !slices.ContainsFunc(filter.Includes, func(include string) bool {
			return strings.Contains(value, strings.ToLower(include))
		}) {
			return filter.Field + " matches no include rule", true
		}
	}

	return "", false
}

func fieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "authors":
		return strings.Join(item.Authors, " ")
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
