package agent

import "sync/atomic"

// State is a step of the collection loop.
type State int32

const (
	Waiting State = iota
	Collecting
	Sending
	Stopped
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Collecting:
		return "collecting"
	case Sending:
		return "sending"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) Load() State   { return State(b.v.Load()) }
func (b *stateBox) Store(s State) { b.v.Store(int32(s)) }
