package upload

import (
	"math/rand"
	"sync"
	"time"
)

// Timing controls the simulated progress bar and the minimum visible upload duration.
type Timing struct {
	MinDuration   time.Duration
	TickInterval  time.Duration
	MaxIncrement  float64
	Cap           float64
	CompleteDelay time.Duration

	// Rand returns values in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultTiming returns the nominal values: 10s floor, 200ms ticks, steps below 15, held at 90.
func DefaultTiming() Timing {
	return Timing{
		MinDuration:   10 * time.Second,
		TickInterval:  200 * time.Millisecond,
		MaxIncrement:  15,
		Cap:           90,
		CompleteDelay: 500 * time.Millisecond,
		Rand:          rand.Float64,
	}
}

// Stage labels, by progress threshold.
const (
	StageAnalyzing  = "Analyzing document..."
	StageExtracting = "Extracting content..."
	StageIndexing   = "Indexing knowledge base..."
	StageFinalizing = "Finalizing..."
)

// StageLabel returns the cosmetic label for a progress value.
func StageLabel(progress float64) string {
	switch {
	case progress < 30:
		return StageAnalyzing
	case progress < 60:
		return StageExtracting
	case progress < 90:
		return StageIndexing
	default:
		return StageFinalizing
	}
}

// Simulator advances a fake progress value on a ticker until it reaches the cap.
// It is not tied to bytes transferred.
type Simulator struct {
	interval time.Duration
	maxStep  float64
	cap      float64
	rand     func() float64
	onTick   func(progress float64)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartSimulator launches the ticker goroutine. onTick runs on that goroutine.
func StartSimulator(t Timing, onTick func(progress float64)) *Simulator {
	rnd := t.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	s := &Simulator{
		interval: t.TickInterval,
		maxStep:  t.MaxIncrement,
		cap:      t.Cap,
		rand:     rnd,
		onTick:   onTick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Simulator) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var progress float64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			progress += s.rand() * s.maxStep
			if progress >= s.cap {
				s.onTick(s.cap)
				return
			}
			s.onTick(progress)
		}
	}
}

// Stop tears the ticker down and waits for it to exit. Safe to call more than once.
// No onTick call happens after Stop returns.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Done is closed once the ticker goroutine has exited.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}
