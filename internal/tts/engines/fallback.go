package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// Fallback speaks through a primary synthesizer and switches to a
// secondary one for good once the primary has failed maxFailures times in
// a row. Cancelled calls are not counted.
type Fallback struct {
	primary   tts.Synthesizer
	secondary tts.Synthesizer
	logger    *log.Logger

	mu            sync.Mutex
	failures      int
	maxFailures   int
	usingFallback bool
}

// NewFallback creates a Fallback. A maxFailures below 1 is treated as 1.
func NewFallback(primary, secondary tts.Synthesizer, maxFailures int) *Fallback {
	return &Fallback{
		primary:     primary,
		secondary:   secondary,
		maxFailures: max(maxFailures, 1),
		logger:      log.WithPrefix("fallback"),
	}
}

// Speak implements tts.Synthesizer.
func (f *Fallback) Speak(ctx context.Context, text, language string, volume int) error {
	if f.UsingFallback() {
		return f.secondary.Speak(ctx, text, language, volume)
	}

	err := f.primary.Speak(ctx, text, language, volume)
	switch {
	case err == nil:
		f.mu.Lock()
		if f.failures > 0 {
			f.logger.Info("primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return nil
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return err
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	if failures >= f.maxFailures {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.logger.Warn("primary engine failed", "attempt", failures, "max", f.maxFailures, "err", err)
	if failures < f.maxFailures {
		return err
	}

	f.logger.Warn("switching to fallback engine", "failures", failures)
	if fbErr := f.secondary.Speak(ctx, text, language, volume); fbErr != nil {
		return fmt.Errorf("both engines failed: %w", errors.Join(err, fbErr))
	}
	return nil
}

// UsingFallback reports whether the secondary synthesizer has taken over.
func (f *Fallback) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}
