package tts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmenter splits extracted article text into speakable clauses.
type Segmenter struct {
	abbreviations map[string]bool
	maxRunes      int
}

// SegmenterOption is a functional option for configuring the segmenter.
type SegmenterOption func(*Segmenter)

// WithMaxSegmentRunes splits clauses longer than n runes at the nearest
// whitespace. Zero disables the limit.
func WithMaxSegmentRunes(n int) SegmenterOption {
	return func(s *Segmenter) {
		if n >= 0 {
			s.maxRunes = n
		}
	}
}

// WithAbbreviations replaces the set of lowercase words whose trailing period
// does not end a sentence.
func WithAbbreviations(words ...string) SegmenterOption {
	return func(s *Segmenter) {
		s.abbreviations = make(map[string]bool, len(words))
		for _, w := range words {
			s.abbreviations[strings.ToLower(strings.TrimSuffix(w, "."))] = true
		}
	}
}

// NewSegmenter creates a segmenter with default settings.
func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		abbreviations: defaultAbbreviations(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits text into clauses, keeping each terminator with the clause
// it closes. The result is a pure function of text.
func (s *Segmenter) Segment(text string) []Segment {
	var (
		out   []Segment
		cur   strings.Builder
		runes = []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	)

	flush := func() {
		clause := strings.TrimSpace(cur.String())
		cur.Reset()
		if !Speakable(clause) {
			return
		}
		for _, part := range s.split(clause) {
			out = append(out, Segment{Index: len(out), Text: part})
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)

		if !s.isBoundary(runes, i) {
			continue
		}
		// Closing quotes and brackets belong to the clause they close.
		for i+1 < len(runes) && isCloser(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		flush()
	}
	flush()

	return out
}

// isBoundary reports whether the rune at pos ends a clause.
func (s *Segmenter) isBoundary(runes []rune, pos int) bool {
	switch runes[pos] {
	case '。', '！', '？', '，', '；', '：', '、', '!', '?', ';':
		return true
	case '.':
	default:
		return false
	}

	next := pos + 1
	for next < len(runes) && isCloser(runes[next]) {
		next++
	}
	if next < len(runes) && !unicode.IsSpace(runes[next]) {
		// 3.14, example.com, a.b.c
		return false
	}
	if pos > 0 && runes[pos-1] == '.' {
		return false
	}
	return !s.isAbbreviation(runes, pos)
}

func (s *Segmenter) isAbbreviation(runes []rune, pos int) bool {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	start++
	if start >= pos {
		return false
	}
	return s.abbreviations[strings.ToLower(string(runes[start:pos]))]
}

// split breaks an overlong clause at whitespace so no part exceeds maxRunes.
// CJK text without spaces is cut at the rune limit.
func (s *Segmenter) split(clause string) []string {
	if s.maxRunes <= 0 || utf8.RuneCountInString(clause) <= s.maxRunes {
		return []string{clause}
	}

	var parts []string
	runes := []rune(clause)
	for len(runes) > s.maxRunes {
		cut := s.maxRunes
		for j := s.maxRunes; j > s.maxRunes/2; j-- {
			if unicode.IsSpace(runes[j]) {
				cut = j
				break
			}
		}
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if part := strings.TrimSpace(string(runes)); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '）', '」', '』', '】', '》', '〉':
		return true
	}
	return false
}

// Speakable reports whether text contains anything a voice can read, i.e.
// it is not made only of quotes, dashes, punctuation and space.
func Speakable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// Prepare limits text to the first limit runes. A non-positive limit keeps
// the text whole.
func Prepare(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// defaultAbbreviations returns common English abbreviations.
func defaultAbbreviations() map[string]bool {
	return map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"sr": true, "jr": true, "st": true, "gen": true, "gov": true,
		"sen": true, "rep": true, "lt": true, "col": true, "capt": true,
		"etc": true, "vs": true, "e.g": true, "i.e": true,
		"inc": true, "ltd": true, "co": true, "corp": true,
		"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
		"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
		"nov": true, "dec": true,
		"u.s": true, "u.k": true, "u.n": true, "no": true,
	}
}
