// Package lang classifies short spans of text into the language tags
// accepted by the speech engines.
//
// Classification runs a primary statistical detector first and only trusts
// it above a confidence threshold. Below the threshold a secondary heuristic
// detector is consulted, and when both fail a fixed fallback tag is returned.
// Classify never fails.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultThreshold is the minimum confidence required from the primary
// detector.
const DefaultThreshold = 0.7

// DefaultFallback is returned when no detector produced a usable code.
const DefaultFallback = "en"

// DefaultLanguages are the candidate tags when none are configured.
var DefaultLanguages = []string{"en", "zh-cn"}

// ErrUndetermined is returned by a Detector that could not decide.
var ErrUndetermined = errors.New("language undetermined")

// Detector guesses the language of a cleaned text span. Codes may be in any
// casing and may carry a regional suffix; they are normalized by the
// Classifier.
type Detector interface {
	Detect(text string) (code string, confidence float64, err error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(text string) (string, float64, error)

// Detect calls f.
func (f DetectorFunc) Detect(text string) (string, float64, error) {
	return f(text)
}

// Classifier maps text to a normalized language tag.
type Classifier struct {
	primary   Detector
	secondary Detector
	threshold float64
	fallback  string

	languages    []string
	primarySet   bool
	secondarySet bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the primary detector confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) {
		if threshold > 0 && threshold <= 1 {
			c.threshold = threshold
		}
	}
}

// WithFallback sets the tag returned when classification fails.
func WithFallback(tag string) Option {
	return func(c *Classifier) {
		if tag != "" {
			c.fallback = Normalize(tag)
		}
	}
}

// WithPrimary replaces the primary statistical detector. Nil disables it.
func WithPrimary(d Detector) Option {
	return func(c *Classifier) {
		c.primary = d
		c.primarySet = true
	}
}

// WithSecondary replaces the secondary heuristic detector. Nil disables it.
func WithSecondary(d Detector) Option {
	return func(c *Classifier) {
		c.secondary = d
		c.secondarySet = true
	}
}

// WithLanguages sets the candidate tags the built-in detectors choose
// from. Short spans are only told apart reliably among few candidates.
func WithLanguages(tags ...string) Option {
	return func(c *Classifier) {
		if len(tags) > 0 {
			c.languages = tags
		}
	}
}

// NewClassifier creates a classifier backed by lingua (primary) and
// whatlanggo (secondary), both limited to DefaultLanguages unless
// overridden by options.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		threshold: DefaultThreshold,
		fallback:  DefaultFallback,
		languages: DefaultLanguages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.primarySet {
		c.primary = NewLinguaDetectorFor(c.languages...)
	}
	if !c.secondarySet {
		c.secondary = NewWhatlangDetector(c.languages...)
	}
	return c
}

// Fallback returns the tag used when both detectors fail.
func (c *Classifier) Fallback() string {
	return c.fallback
}

// Classify returns the normalized language tag for text.
func (c *Classifier) Classify(text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return c.fallback
	}

	if c.primary != nil {
		code, confidence, err := safeDetect(c.primary, cleaned)
		if err == nil && code != "" && confidence > c.threshold {
			return Normalize(code)
		}
		log.Debug("primary language detector not confident",
			"confidence", confidence, "code", code, "err", err)
	}

	if c.secondary != nil {
		code, _, err := safeDetect(c.secondary, cleaned)
		if err == nil && code != "" {
			return Normalize(code)
		}
		log.Debug("secondary language detector failed", "err", err)
	}

	return c.fallback
}

// safeDetect shields the classifier from detector panics.
func safeDetect(d Detector, text string) (code string, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			code, confidence = "", 0
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return d.Detect(text)
}

// codeMap translates detector-specific codes into engine tags.
var codeMap = map[string]string{
	"zh": "zh-cn",
	"jp": "ja",
	"kr": "ko",
	"iw": "he",
	"in": "id",
	"tl": "fil",
}

// baseCode returns the ISO 639-1 part of a tag.
func baseCode(tag string) string {
	code := Normalize(tag)
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

// Normalize strips any regional suffix and maps the base code through the
// engine lookup table.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	if mapped, ok := codeMap[code]; ok {
		return mapped
	}
	return code
}
