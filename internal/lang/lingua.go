package lang

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// LinguaDetector is the primary statistical detector. Language models are
// loaded lazily on first use.
type LinguaDetector struct {
	languages []lingua.Language

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLinguaDetector creates a detector restricted to languages, or covering
// every language lingua knows when fewer than two are given.
func NewLinguaDetector(languages ...lingua.Language) *LinguaDetector {
	return &LinguaDetector{languages: languages}
}

// NewLinguaDetectorFor creates a detector restricted to the languages behind
// tags. Tags lingua does not know are skipped; when fewer than two remain,
// DefaultLanguages are added.
func NewLinguaDetectorFor(tags ...string) *LinguaDetector {
	languages := linguaLanguages(tags)
	if len(languages) < 2 {
		languages = linguaLanguages(append(append([]string(nil), tags...), DefaultLanguages...))
	}
	return NewLinguaDetector(languages...)
}

func linguaLanguages(tags []string) []lingua.Language {
	seen := make(map[lingua.Language]bool)
	var out []lingua.Language
	for _, tag := range tags {
		code := lingua.GetIsoCode639_1FromValue(baseCode(tag))
		if code == lingua.UnknownIsoCode639_1 {
			continue
		}
		language := lingua.GetLanguageFromIsoCode639_1(code)
		if language == lingua.Unknown || seen[language] {
			continue
		}
		seen[language] = true
		out = append(out, language)
	}
	return out
}

func (d *LinguaDetector) build() {
	builder := lingua.NewLanguageDetectorBuilder()
	if len(d.languages) >= 2 {
		d.detector = builder.FromLanguages(d.languages...).Build()
		return
	}
	d.detector = builder.FromAllLanguages().Build()
}

// Detect returns the ISO 639-1 code and confidence of the top candidate.
func (d *LinguaDetector) Detect(text string) (string, float64, error) {
	d.once.Do(d.build)

	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return "", 0, ErrUndetermined
	}

	top := values[0]
	if top.Language() == lingua.Unknown {
		return "", 0, ErrUndetermined
	}
	return strings.ToLower(top.Language().IsoCode639_1().String()), top.Value(), nil
}
