package config

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Snapshot is a consistent copy of the opacity levels.
type Snapshot struct {
	Focused   float64 `json:"focused" yaml:"focused"`
	Unfocused float64 `json:"unfocused" yaml:"unfocused"`
	Step      float64 `json:"step" yaml:"step"`
}

// Levels holds the opacity levels shared between the dimming loop and the
// runtime triggers. Each value is stored as atomic float bits, so a reader
// never sees a half-written float.
type Levels struct {
	focused   atomic.Uint64
	unfocused atomic.Uint64
	step      atomic.Uint64
}

// NewLevels creates levels from s, clamping each value to [0,1].
func NewLevels(s Snapshot) *Levels {
	l := &Levels{}
	l.focused.Store(math.Float64bits(clamp(s.Focused)))
	l.unfocused.Store(math.Float64bits(clamp(s.Unfocused)))
	l.step.Store(math.Float64bits(clamp(s.Step)))
	return l
}

// Snapshot returns the current levels.
func (l *Levels) Snapshot() Snapshot {
	return Snapshot{
		Focused:   math.Float64frombits(l.focused.Load()),
		Unfocused: math.Float64frombits(l.unfocused.Load()),
		Step:      math.Float64frombits(l.step.Load()),
	}
}

// Increase raises the unfocused opacity by one step and returns the new value.
func (l *Levels) Increase() float64 {
	return l.adjustUnfocused(1)
}

// Decrease lowers the unfocused opacity by one step and returns the new value.
func (l *Levels) Decrease() float64 {
	return l.adjustUnfocused(-1)
}

// SetUnfocused replaces the unfocused opacity.
func (l *Levels) SetUnfocused(v float64) error {
	if err := ValidateOpacity("unfocused opacity", v); err != nil {
		return err
	}
	l.unfocused.Store(math.Float64bits(v))
	return nil
}

func (l *Levels) adjustUnfocused(direction float64) float64 {
	step := math.Float64frombits(l.step.Load())
	for {
		old := l.unfocused.Load()
		next := round2(clamp(math.Float64frombits(old) + direction*step))
		if l.unfocused.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// ValidateOpacity rejects values outside [0,1].
func ValidateOpacity(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0.0 and 1.0, got %v", name, v)
	}
	return nil
}

// MinOpacityStep is the smallest step that survives rounding to hundredths.
const MinOpacityStep = 0.01

// ValidateStep rejects steps outside [0,1] and non-zero steps too small to
// move a level rounded to hundredths.
func ValidateStep(name string, v float64) error {
	if err := ValidateOpacity(name, v); err != nil {
		return err
	}
	if v != 0 && v < MinOpacityStep {
		return fmt.Errorf("%s must be 0 or at least %.2f, got %v", name, MinOpacityStep, v)
	}
	return nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
