package whatsapp

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ManagerOptions struct {
	// Backoff is the wait before reopening after a transient close.
	Backoff time.Duration

	// OnQR receives pairing codes for out-of-band display.
	OnQR func(code string)

	// OnState is called after every state transition.
	OnState func(State)

	// Exit ends the process on an unrecoverable close. Defaults to os.Exit.
	Exit func(code int)
}

// Manager owns the long-lived session. All session events go through
// Dispatch, which is the only place state changes.
//
// Manager also satisfies Session: Send is forwarded to whichever session is
// currently open, so holders of the Manager survive reconnects.
type Manager struct {
	dialer Dialer
	log    zerolog.Logger
	opts   ManagerOptions

	mu      sync.RWMutex
	ctx     context.Context
	state   State
	live    Session
	pending Session
	retired map[Session]bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

func NewManager(dialer Dialer, log zerolog.Logger, opts ManagerOptions) *Manager {
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	return &Manager{
		dialer:  dialer,
		log:     log,
		opts:    opts,
		ctx:     context.Background(),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		retired: make(map[Session]bool),
	}
}

// Start opens the first session. Dial failures are retried in the background.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	m.dial()
}

// Acquire blocks until the first session is open.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	select {
	case <-m.ready:
		if s := m.Current(); s != nil {
			return s, nil
		}
		return nil, ErrNotConnected
	case <-m.done:
		return nil, ErrTerminated
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the open session, or nil when there is none.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateOpen {
		return nil
	}
	return m.live
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Send(ctx context.Context, to string, msg *OutgoingMessage) error {
	s := m.Current()
	if s == nil {
		return ErrNotConnected
	}
	return s.Send(ctx, to, msg)
}

func (m *Manager) PersistCredentials(ctx context.Context) error {
	m.mu.RLock()
	s := m.pending
	m.mu.RUnlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.PersistCredentials(ctx)
}

// Close shuts the current session down without reconnecting.
func (m *Manager) Close() {
	m.mu.Lock()
	s := m.pending
	m.live = nil
	m.pending = nil
	if m.state != StateTerminated {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Dispatch applies one session event to the state machine.
func (m *Manager) Dispatch(evt Event) {
	switch evt.Kind {
	case EventQR:
		m.log.Info().Msg("scan the QR code to link this device")
		if m.opts.OnQR != nil {
			m.opts.OnQR(evt.QRCode)
		}
		return
	case EventCredentialsChanged:
		s := evt.Session
		if s == nil {
			m.mu.RLock()
			s = m.pending
			m.mu.RUnlock()
		}
		if s == nil {
			return
		}
		if err := s.PersistCredentials(m.context()); err != nil {
			m.log.Error().Err(err).Msg("failed to persist credentials")
		}
		return
	}

	m.mu.Lock()
	if m.state == StateTerminated || m.stale(evt.Session) {
		m.mu.Unlock()
		return
	}

	var (
		next      = m.state
		reconnect Session
		terminate bool
		resolve   bool
	)

	switch evt.Kind {
	case EventOpening:
		next = StateOpening
		if evt.Session != nil {
			m.pending = evt.Session
		}
	case EventOpen:
		next = StateOpen
		if evt.Session != nil {
			m.pending = evt.Session
		}
		m.live = m.pending
		resolve = true
	case EventClosed:
		m.live = nil
		switch {
		case evt.Cause == CauseLoggedOut:
			next = StateTerminated
			terminate = true
		case evt.Cause.Transient():
			next = StateOpening
			reconnect = m.pending
			m.retire(m.pending)
			m.pending = nil
		default:
			next = StateDisconnected
		}
	}
	m.state = next
	m.mu.Unlock()

	if m.opts.OnState != nil {
		m.opts.OnState(next)
	}

	switch {
	case resolve:
		m.log.Info().Msg("connected to WhatsApp")
		m.readyOnce.Do(func() { close(m.ready) })
	case terminate:
		close(m.done)
		m.log.Error().
			Str("cause", evt.Cause.String()).
			Str("detail", evt.Detail).
			Msg("logged out; delete the session store and pair the device again")
		m.opts.Exit(1)
	case evt.Kind == EventClosed && reconnect != nil:
		m.log.Warn().
			Str("cause", evt.Cause.String()).
			Str("detail", evt.Detail).
			Dur("backoff", m.opts.Backoff).
			Msg("temporary disconnect, reconnecting")
		reconnect.Close()
		go m.redial()
	case evt.Kind == EventClosed && evt.Cause.Transient():
		m.log.Warn().Str("cause", evt.Cause.String()).Msg("temporary disconnect, reconnecting")
		go m.redial()
	case evt.Kind == EventClosed:
		m.log.Warn().
			Str("cause", evt.Cause.String()).
			Str("detail", evt.Detail).
			Msg("connection closed")
	}
}

// stale reports whether an event comes from a session that has been replaced.
// Callers hold m.mu.
func (m *Manager) stale(s Session) bool {
	if s == nil {
		return false
	}
	if m.retired[s] {
		return true
	}
	if m.pending == nil {
		return false
	}
	return s != m.pending && s != m.live
}

// retire marks a replaced session so its late events are ignored. Callers
// hold m.mu.
func (m *Manager) retire(s Session) {
	if s != nil {
		m.retired[s] = true
	}
}

func (m *Manager) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

func (m *Manager) redial() {
	ctx := m.context()
	timer := time.NewTimer(m.opts.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-m.done:
		return
	case <-timer.C:
	}
	m.dial()
}

func (m *Manager) dial() {
	ctx := m.context()
	if ctx.Err() != nil || m.State() == StateTerminated {
		return
	}
	s, err := m.dialer.Dial(ctx, m.Dispatch)
	if err != nil {
		// A dialer may announce the session before it fails to connect.
		// Retire it so the next attempt is not taken for a stale session.
		m.mu.Lock()
		if m.pending != nil && m.pending != m.live {
			m.retire(m.pending)
			m.pending = nil
		}
		m.mu.Unlock()
		m.log.Error().Err(err).Dur("backoff", m.opts.Backoff).Msg("failed to open session, retrying")
		go m.redial()
		return
	}

	m.mu.Lock()
	if m.state == StateTerminated {
		m.mu.Unlock()
		s.Close()
		return
	}
	if m.pending == nil && !m.retired[s] {
		m.pending = s
	}
	m.mu.Unlock()
}
