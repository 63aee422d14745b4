package news

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownExtensions = []string{".md", ".markdown", ".mdown", ".mkdn", ".mkd"}

// ReadFile returns the speakable text of a local file. Markdown files are
// reduced to their prose.
func ReadFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", err
	}
	if IsMarkdown(expanded) {
		return MarkdownText(data), nil
	}
	return string(data), nil
}

// ReadAll reads r completely, treating it as markdown when markdown is set.
func ReadAll(r io.Reader, markdown bool) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if markdown {
		return MarkdownText(data), nil
	}
	return string(data), nil
}

// IsMarkdown reports whether path has a markdown extension.
func IsMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range markdownExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// MarkdownText returns the prose of a markdown document, one block per
// line. Code, raw HTML and link targets are dropped.
func MarkdownText(source []byte) string {
	reader := text.NewReader(source)
	doc := goldmark.New().Parser().Parse(reader)

	var buf bytes.Buffer
	walkMarkdown(doc, reader.Source(), &buf)

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func walkMarkdown(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() {
			buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			buf.WriteByte('\n')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.Image:
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.ThematicBreak:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkMarkdown(c, source, buf)
		}
		buf.WriteByte('\n')
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkMarkdown(c, source, buf)
	}
}
