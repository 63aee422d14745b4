package lang

import "github.com/abadojack/whatlanggo"

// WhatlangDetector is the secondary trigram/script heuristic detector.
type WhatlangDetector struct {
	options whatlanggo.Options
}

// NewWhatlangDetector creates a detector limited to the languages behind
// tags, or covering every language whatlanggo knows when none are given.
// A guess outside the list counts as undetermined.
func NewWhatlangDetector(tags ...string) *WhatlangDetector {
	d := &WhatlangDetector{}
	for _, tag := range tags {
		base := baseCode(tag)
		for l := range whatlanggo.Langs {
			if l.Iso6391() != base {
				continue
			}
			if d.options.Whitelist == nil {
				d.options.Whitelist = make(map[whatlanggo.Lang]bool)
			}
			d.options.Whitelist[l] = true
		}
	}
	return d
}

// Detect returns the ISO 639-1 code of whatlanggo's guess.
func (d *WhatlangDetector) Detect(text string) (string, float64, error) {
	info := whatlanggo.DetectWithOptions(text, d.options)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", 0, ErrUndetermined
	}
	// Scripts with a single language bypass the whitelist.
	if d.options.Whitelist != nil && !d.options.Whitelist[info.Lang] {
		return "", 0, ErrUndetermined
	}
	return code, info.Confidence, nil
}
