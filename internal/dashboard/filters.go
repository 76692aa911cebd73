package dashboard

import (
	"net/url"

	"github.com/samber/lo"

	"github.com/knowledgepin/cli/internal/api"
)

// FilterOptions are the tag and platform choices offered for the current result set.
type FilterOptions struct {
	Tags      []string `json:"tags"`
	Platforms []string `json:"platforms"`
}

// BuildFilterOptions collects the distinct tags and URL hostnames of items in
// first-seen order. Items whose URL has no hostname contribute no platform.
func BuildFilterOptions(items []api.SavedItem) FilterOptions {
	tags := lo.FlatMap(items, func(item api.SavedItem, _ int) []string {
		return item.Tags
	})
	platforms := lo.FilterMap(items, func(item api.SavedItem, _ int) (string, bool) {
		host := Platform(item.URL)
		return host, host != ""
	})
	return FilterOptions{
		Tags:      lo.Uniq(tags),
		Platforms: lo.Uniq(platforms),
	}
}

// Platform is the hostname of rawURL, or "" when it cannot be parsed.
func Platform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
