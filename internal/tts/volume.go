package tts

import "sync/atomic"

const (
	// MinVolume is the lowest playback volume.
	MinVolume = 0

	// MaxVolume is the highest playback volume.
	MaxVolume = 100

	// DefaultVolumeStep is the change applied by Up and Down.
	DefaultVolumeStep = 10
)

// Volume is a playback volume in [MinVolume, MaxVolume] that may be changed
// from any goroutine while a session reads it once per segment.
type Volume struct {
	level atomic.Int32
	step  atomic.Int32
}

// NewVolume creates a volume at the given level and step.
func NewVolume(level, step int) *Volume {
	v := &Volume{}
	v.Set(level)
	v.SetStep(step)
	return v
}

// Get returns the current level.
func (v *Volume) Get() int {
	return int(v.level.Load())
}

// Set clamps and stores level, returning the stored value.
func (v *Volume) Set(level int) int {
	level = clampVolume(level)
	v.level.Store(int32(level))
	return level
}

// SetStep changes the increment used by Up and Down.
func (v *Volume) SetStep(step int) {
	if step <= 0 || step > MaxVolume {
		step = DefaultVolumeStep
	}
	v.step.Store(int32(step))
}

// Up raises the volume by one step.
func (v *Volume) Up() int {
	return v.add(int(v.step.Load()))
}

// Down lowers the volume by one step.
func (v *Volume) Down() int {
	return v.add(-int(v.step.Load()))
}

func (v *Volume) add(delta int) int {
	for {
		old := v.level.Load()
		next := int32(clampVolume(int(old) + delta))
		if v.level.CompareAndSwap(old, next) {
			return int(next)
		}
	}
}

func clampVolume(level int) int {
	switch {
	case level < MinVolume:
		return MinVolume
	case level > MaxVolume:
		return MaxVolume
	default:
		return level
	}
}
