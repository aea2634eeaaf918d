package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mau.fi/whatsmeow/types/events"
)

func TestTranslateEvent(t *testing.T) {
	tests := []struct {
		name  string
		raw   any
		kind  EventKind
		cause CloseCause
	}{
		{name: "connected", raw: &events.Connected{}, kind: EventOpen},
		{name: "disconnected", raw: &events.Disconnected{}, kind: EventClosed, cause: CauseConnectionClosed},
		{name: "stream error", raw: &events.StreamError{Code: "503"}, kind: EventClosed, cause: CauseOther},
		{name: "logged out", raw: &events.LoggedOut{Reason: events.ConnectFailureLoggedOut}, kind: EventClosed, cause: CauseLoggedOut},
		{name: "connect failure logout", raw: &events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, kind: EventClosed, cause: CauseLoggedOut},
		{name: "stream replaced", raw: &events.StreamReplaced{}, kind: EventClosed, cause: CauseOther},
		{name: "pair success", raw: &events.PairSuccess{}, kind: EventCredentialsChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, ok := translateEvent(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, evt.Kind)
			assert.Equal(t, tt.cause, evt.Cause)
		})
	}

	_, ok := translateEvent(&events.Message{})
	assert.False(t, ok)
}

func TestOutgoingMessageCaption(t *testing.T) {
	msg := &OutgoingMessage{Type: TypeImage, Image: &MediaObj{Caption: "hello"}}
	assert.Equal(t, "hello", msg.Caption())
	assert.Nil(t, NewTextMessage("x").Media())
	assert.Equal(t, "", NewTextMessage("x").Caption())
}

func TestCloseCauseTransient(t *testing.T) {
	assert.True(t, CauseRestartRequired.Transient())
	assert.True(t, CauseConnectionClosed.Transient())
	assert.False(t, CauseLoggedOut.Transient())
	assert.False(t, CauseOther.Transient())
}
