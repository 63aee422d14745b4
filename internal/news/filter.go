package news

import (
	"github.com/sahilm/fuzzy"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

type titles []tts.ContentItem

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Filter returns the items whose titles fuzzy-match query, best match
// first. An empty query returns items unchanged.
func Filter(items []tts.ContentItem, query string) []tts.ContentItem {
	if query == "" {
		return items
	}
	matches := fuzzy.FindFrom(query, titles(items))
	out := make([]tts.ContentItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}
