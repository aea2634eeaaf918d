package whatsapp

import (
	"context"
	"errors"
)

var (
	ErrNotConnected = errors.New("whatsapp not connected")
	ErrTerminated   = errors.New("whatsapp session terminated")
)

// Session is an open, authenticated connection to the WhatsApp network.
type Session interface {
	Send(ctx context.Context, to string, msg *OutgoingMessage) error
	PersistCredentials(ctx context.Context) error
	Close()
}

// Dialer opens new sessions. Every event the session produces must be passed
// to emit, tagged with the session it came from.
type Dialer interface {
	Dial(ctx context.Context, emit func(Event)) (Session, error)
}

type State int

const (
	StateDisconnected State = iota
	StateOpening
	StateOpen
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

type EventKind int

const (
	EventOpening EventKind = iota
	EventOpen
	EventClosed
	EventCredentialsChanged
	EventQR
)

func (k EventKind) String() string {
	switch k {
	case EventOpening:
		return "opening"
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventCredentialsChanged:
		return "credentials_changed"
	case EventQR:
		return "qr"
	}
	return "unknown"
}

// CloseCause classifies why a session closed.
type CloseCause int

const (
	CauseOther CloseCause = iota
	CauseRestartRequired
	CauseConnectionClosed
	CauseLoggedOut
)

func (c CloseCause) String() string {
	switch c {
	case CauseRestartRequired:
		return "restart_required"
	case CauseConnectionClosed:
		return "connection_closed"
	case CauseLoggedOut:
		return "logged_out"
	}
	return "other"
}

// Transient reports whether a close with this cause should be retried.
func (c CloseCause) Transient() bool {
	return c == CauseRestartRequired || c == CauseConnectionClosed
}

type Event struct {
	Kind    EventKind
	Cause   CloseCause
	Detail  string
	QRCode  string
	Session Session
}
