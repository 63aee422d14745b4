// Package audio plays raw 16-bit PCM through oto/v3. Playback blocks until
// the clip ends or its context is cancelled, so callers can interrupt speech
// mid-sentence.
package audio
