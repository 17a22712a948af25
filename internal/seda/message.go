package seda

import "fmt"

// Message is a unit of work passed between stages. It carries no mandatory
// contract; the engine only needs its identity and, for routing by type,
// its type name.
type Message = any

// Typed is implemented by messages that choose their own default route name.
type Typed interface {
	MessageType() string
}

// TypeName returns the default route name of msg: its MessageType if it
// implements Typed, otherwise its dynamic Go type.
func TypeName(msg Message) string {
	if t, ok := msg.(Typed); ok {
		return t.MessageType()
	}
	return fmt.Sprintf("%T", msg)
}

// RejectStageName is the route every RejectMessage is dispatched to unless a
// stage is configured with another reject route.
const RejectStageName = "seda.RejectMessage"

// RejectType classifies why a message was not processed.
type RejectType int

const (
	// ProcessError means Process returned an error or panicked. Info is the error.
	ProcessError RejectType = iota
	// UserReject is raised by application code. Info is application defined.
	UserReject
	// StageShutdown means the stage was no longer accepting input. Info is
	// the stage name.
	StageShutdown
	// StageBusy means the message was shed under overload. Info is the stage.
	StageBusy
)

// String returns the string representation of the reject type.
func (t RejectType) String() string {
	switch t {
	case ProcessError:
		return "PROCESS_ERROR"
	case UserReject:
		return "USER_REJECT"
	case StageShutdown:
		return "STAGE_SHUTDOWN"
	case StageBusy:
		return "STAGE_BUSY"
	default:
		return fmt.Sprintf("RejectType(%d)", int(t))
	}
}

// RejectMessage records a message that was not processed and why.
// It is immutable once created.
type RejectMessage struct {
	rejectType RejectType
	info       any
	rejected   Message
}

// NewRejectMessage creates a RejectMessage.
func NewRejectMessage(t RejectType, info any, rejected Message) *RejectMessage {
	return &RejectMessage{rejectType: t, info: info, rejected: rejected}
}

// Type returns why the message was rejected.
func (r *RejectMessage) Type() RejectType { return r.rejectType }

// Info returns the reject detail; its meaning depends on Type.
func (r *RejectMessage) Info() any { return r.info }

// Rejected returns the original message.
func (r *RejectMessage) Rejected() Message { return r.rejected }

// MessageType routes reject messages to RejectStageName by default.
func (r *RejectMessage) MessageType() string { return RejectStageName }

// Err returns the processing error carried by a ProcessError rejection, or nil.
func (r *RejectMessage) Err() error {
	if r.rejectType != ProcessError {
		return nil
	}
	err, _ := r.info.(error)
	return err
}

// String implements fmt.Stringer.
func (r *RejectMessage) String() string {
	return fmt.Sprintf("RejectMessage{%s, %v, %s}", r.rejectType, r.infoString(), TypeName(r.rejected))
}

func (r *RejectMessage) infoString() any {
	if n, ok := r.info.(interface{ Name() string }); ok {
		return n.Name()
	}
	return r.info
}
