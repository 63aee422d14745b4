package tts

import (
	"slices"

	"github.com/coder6688/wenxuecity-tts/internal/lang"
)

// AllowlistPolicy coerces any tag outside a fixed set to a default tag.
type AllowlistPolicy struct {
	allowed  []string
	fallback string
}

// NewAllowlistPolicy creates a policy accepting allowed and mapping
// everything else to fallback. Tags are normalized.
func NewAllowlistPolicy(allowed []string, fallback string) AllowlistPolicy {
	p := AllowlistPolicy{
		allowed:  make([]string, 0, len(allowed)),
		fallback: lang.Normalize(fallback),
	}
	for _, a := range allowed {
		p.allowed = append(p.allowed, lang.Normalize(a))
	}
	return p
}

// Restrict implements LanguagePolicy.
func (p AllowlistPolicy) Restrict(tag string) string {
	if len(p.allowed) == 0 {
		return tag
	}
	tag = lang.Normalize(tag)
	if slices.Contains(p.allowed, tag) {
		return tag
	}
	return p.fallback
}

// Allowed returns a copy of the accepted tags.
func (p AllowlistPolicy) Allowed() []string {
	return slices.Clone(p.allowed)
}

// PolicyFunc adapts a function to LanguagePolicy.
type PolicyFunc func(tag string) string

// Restrict implements LanguagePolicy.
func (f PolicyFunc) Restrict(tag string) string {
	return f(tag)
}
