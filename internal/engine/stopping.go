package engine

import "sync/atomic"

// StoppingCriteria is a shared interrupt flag. The worker sets it, the
// provider polls it at every token boundary. A nil *StoppingCriteria is
// never interrupted.
type StoppingCriteria struct {
	flag atomic.Bool
}

func NewStoppingCriteria() *StoppingCriteria { return &StoppingCriteria{} }

func (s *StoppingCriteria) Interrupt() {
	if s != nil {
		s.flag.Store(true)
	}
}

func (s *StoppingCriteria) Reset() {
	if s != nil {
		s.flag.Store(false)
	}
}

func (s *StoppingCriteria) Interrupted() bool {
	return s != nil && s.flag.Load()
}
