// Package walkforward partitions a time-ordered series into consecutive
// (training, test) index ranges for out-of-sample evaluation.
package walkforward

import (
	"fmt"

	"github.com/newthinker/enercast/internal/core"
)

// Mode selects how the training range evolves between windows.
type Mode string

const (
	// ModeRolling keeps the training length fixed and slides it forward.
	ModeRolling Mode = "rolling"
	// ModeExpanding anchors training at the series start and grows it.
	ModeExpanding Mode = "expanding"
)

// ParseMode validates a configured window mode. Empty means rolling.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRolling:
		return ModeRolling, nil
	case ModeExpanding:
		return ModeExpanding, nil
	default:
		return "", core.ConfigError("unknown window mode %q (want rolling or expanding)", s)
	}
}

// Window is one walk-forward fold. Ranges are half-open [start, end).
type Window struct {
	Index      int `json:"index"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// TrainLen returns the number of training points.
func (w Window) TrainLen() int { return w.TrainEnd - w.TrainStart }

// TestLen returns the number of test points.
func (w Window) TestLen() int { return w.TestEnd - w.TestStart }

func (w Window) String() string {
	return fmt.Sprintf("window %d train [%d,%d) test [%d,%d)",
		w.Index, w.TrainStart, w.TrainEnd, w.TestStart, w.TestEnd)
}

// Splitter yields walk-forward windows lazily. It holds only integers, so
// it is cheap to construct and can be restarted with Reset.
type Splitter struct {
	n        int
	trainLen int
	testLen  int
	mode     Mode
	next     int
}

// New creates a splitter over a series of n points.
// It fails with a configuration error for non-positive lengths and with
// *core.InsufficientDataError when n cannot hold one train+test window.
func New(n, trainLen, testLen int, mode Mode) (*Splitter, error) {
	if trainLen <= 0 {
		return nil, core.ConfigError("train_length must be positive, got %d", trainLen)
	}
	if testLen <= 0 {
		return nil, core.ConfigError("test_length must be positive, got %d", testLen)
	}
	if mode != ModeRolling && mode != ModeExpanding {
		return nil, core.ConfigError("unknown window mode %q", mode)
	}
	if n < trainLen+testLen {
		return nil, &core.InsufficientDataError{Have: n, Need: trainLen + testLen}
	}
	return &Splitter{n: n, trainLen: trainLen, testLen: testLen, mode: mode}, nil
}

// Count returns the total number of windows: floor((n - train) / test).
func (s *Splitter) Count() int {
	return (s.n - s.trainLen) / s.testLen
}

// Next returns the next window, or false once the series is exhausted.
// A trailing remainder shorter than the test length is dropped.
func (s *Splitter) Next() (Window, bool) {
	if s.next >= s.Count() {
		return Window{}, false
	}
	w := s.window(s.next)
	s.next++
	return w, true
}

// Reset rewinds the splitter to the first window.
func (s *Splitter) Reset() {
	s.next = 0
}

// All returns every window without disturbing the iteration cursor.
func (s *Splitter) All() []Window {
	out := make([]Window, s.Count())
	for i := range out {
		out[i] = s.window(i)
	}
	return out
}

func (s *Splitter) window(k int) Window {
	offset := k * s.testLen
	trainStart := offset
	if s.mode == ModeExpanding {
		trainStart = 0
	}
	trainEnd := offset + s.trainLen
	return Window{
		Index:      k,
		TrainStart: trainStart,
		TrainEnd:   trainEnd,
		TestStart:  trainEnd,
		TestEnd:    trainEnd + s.testLen,
	}
}
