package scout

import "time"

// Narration is the simulated progress script played in fast mode. It models
// the progress feed of a real acquisition without external interaction and
// can be swapped or disabled (zero delay, no steps) in tests.
type Narration struct {
	Steps     []string
	StepDelay time.Duration
}

// DefaultNarration returns the stock fast-mode script.
func DefaultNarration() Narration {
	return Narration{
		Steps: []string{
			"Navigating to marketplace...",
			"Login successful",
			"Scanning open contracts...",
			"Found matching contract",
			"Auto-accepting terms...",
			"Downloading payload...",
		},
		StepDelay: 800 * time.Millisecond,
	}
}
