package escalation

import (
	"context"
	"strings"
	"sync"
	"time"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/logger"
	"zapmenu/pkg/session"
)

// Deliverer is the sequencer surface the detector needs to send the handoff
// notice with the usual human pacing.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, ref bus.MessageRef, action func(ctx context.Context) error) error
}

type TextSender interface {
	SendText(ctx context.Context, userID, text string) error
}

// Detector watches every text shown to a user, inbound or outbound, for the
// handoff triggers. On a match it sends the handoff notice and terminates
// the session after a grace window, leaving the conversation to a human
// agent.
type Detector struct {
	seq        Deliverer
	transport  TextSender
	sessions   *session.Store
	notice     string
	triggers   []string
	grace      time.Duration
	onEscalate func(userID string)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewDetector(seq Deliverer, transport TextSender, sessions *session.Store, triggerCode, notice string, grace time.Duration) *Detector {
	triggers := []string{strings.ToLower(triggerCode), strings.ToLower(notice)}
	return &Detector{
		seq:       seq,
		transport: transport,
		sessions:  sessions,
		notice:    notice,
		triggers:  triggers,
		grace:     grace,
		pending:   make(map[string]*time.Timer),
	}
}

// SetOnEscalate registers a hook invoked once per escalation. Must be set
// before traffic starts.
func (d *Detector) SetOnEscalate(fn func(userID string)) {
	d.onEscalate = fn
}

// Match reports whether the text contains a trigger. Matching is
// case-insensitive substring containment, same for inbound and outbound
// text.
func (d *Detector) Match(text string) bool {
	lowered := strings.ToLower(text)
	for _, trigger := range d.triggers {
		if trigger != "" && strings.Contains(lowered, trigger) {
			return true
		}
	}
	return false
}

// Escalate sends the handoff notice and schedules termination after the
// grace window. Re-escalating replaces the pending grace timer; escalating a
// terminated session is a no-op.
func (d *Detector) Escalate(ctx context.Context, userID string, ref bus.MessageRef) error {
	if d.sessions.Terminated(userID) {
		return nil
	}

	logger.InfoCF("escalation", "Handing conversation off to a human agent", map[string]interface{}{
		logger.FieldUserID: userID,
	})
	if d.onEscalate != nil {
		d.onEscalate(userID)
	}

	// The notice itself contains a trigger phrase; it is sent directly,
	// without the outbound re-check, to avoid escalating on our own notice.
	err := d.seq.Deliver(ctx, userID, ref, func(ctx context.Context) error {
		return d.transport.SendText(ctx, userID, d.notice)
	})
	if err != nil {
		return err
	}

	d.scheduleTermination(userID)
	return nil
}

// CheckAndEscalate is the combined path used for inbound text.
func (d *Detector) CheckAndEscalate(ctx context.Context, userID string, ref bus.MessageRef, text string) (bool, error) {
	if !d.Match(text) {
		return false, nil
	}
	return true, d.Escalate(ctx, userID, ref)
}

func (d *Detector) scheduleTermination(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[userID]; ok {
		prev.Stop()
	}
	d.pending[userID] = time.AfterFunc(d.grace, func() {
		d.mu.Lock()
		delete(d.pending, userID)
		d.mu.Unlock()
		d.sessions.Terminate(userID, session.ReasonEscalation)
	})
}

// PendingCount reports how many grace timers are outstanding. Test hook.
func (d *Detector) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// StopAll cancels outstanding grace timers. Used on shutdown.
func (d *Detector) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for userID, t := range d.pending {
		t.Stop()
		delete(d.pending, userID)
	}
}
