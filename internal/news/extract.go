package news

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// boilerplate is removed before the article text is collected.
const boilerplate = "script, style, nav, footer, header, aside, noscript"

// ParseHeadlines collects the links matched by selector, resolving them
// against base. The first occurrence of a URL wins.
func ParseHeadlines(doc *goquery.Document, base *url.URL, selector string) []tts.ContentItem {
	var items []tts.ContentItem
	seen := make(map[string]bool)

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		items = append(items, tts.ContentItem{
			Title: strings.TrimSpace(s.Text()),
			URL:   abs,
		})
	})
	return items
}

// ArticleText returns the stripped text nodes of doc joined by newlines,
// after dropping page chrome. When marker occurs, everything up to it and
// the skip runes after it are discarded.
func ArticleText(doc *goquery.Document, marker string, skip int) string {
	doc.Find(boilerplate).Remove()

	var lines []string
	for _, n := range doc.Selection.Nodes {
		collectText(n, &lines)
	}
	text := strings.Join(lines, "\n")

	if marker == "" {
		return text
	}
	idx := strings.Index(text, marker)
	if idx < 0 {
		return text
	}
	rest := []rune(text[idx+len(marker):])
	if skip > len(rest) {
		skip = len(rest)
	}
	return string(rest[skip:])
}

func collectText(n *html.Node, lines *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*lines = append(*lines, s)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
