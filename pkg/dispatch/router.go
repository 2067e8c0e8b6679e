package dispatch

import "github.com/worldwidemv/gsbp-go/pkg/wire"

// MessageRouter implements correlation.MessageSink, fanning out
// Message payloads to one callback per severity. Any callback left
// nil is simply skipped, so an application only wires up the
// severities it cares about.
type MessageRouter struct {
	OnDebug         func(wire.Message)
	OnInfo          func(wire.Message)
	OnWarning       func(wire.Message)
	OnError         func(wire.Message)
	OnCriticalError func(wire.Message)
}

func (r *MessageRouter) Debug(m wire.Message) {
	if r.OnDebug != nil {
		r.OnDebug(m)
	}
}

func (r *MessageRouter) Info(m wire.Message) {
	if r.OnInfo != nil {
		r.OnInfo(m)
	}
}

func (r *MessageRouter) Warning(m wire.Message) {
	if r.OnWarning != nil {
		r.OnWarning(m)
	}
}

func (r *MessageRouter) Error(m wire.Message) {
	if r.OnError != nil {
		r.OnError(m)
	}
}

func (r *MessageRouter) CriticalError(m wire.Message) {
	if r.OnCriticalError != nil {
		r.OnCriticalError(m)
	}
}
