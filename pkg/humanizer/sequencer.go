package humanizer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/logger"
)

type Presence string

const (
	PresenceAvailable   Presence = "available"
	PresenceComposing   Presence = "composing"
	PresenceUnavailable Presence = "unavailable"
)

// Signaler is the slice of the transport the sequencer drives: presence
// updates and read receipts.
type Signaler interface {
	SendPresence(ctx context.Context, userID string, state Presence) error
	MarkRead(ctx context.Context, userID string, ref bus.MessageRef) error
}

type Options struct {
	StepDelayMin time.Duration
	StepDelayMax time.Duration
	IdleDelayMin time.Duration
	IdleDelayMax time.Duration
}

func DefaultOptions() Options {
	return Options{
		StepDelayMin: time.Second,
		StepDelayMax: 2 * time.Second,
		IdleDelayMin: 10 * time.Second,
		IdleDelayMax: 15 * time.Second,
	}
}

// Sequencer wraps each outbound reply in a presence/read/typing choreography
// so deliveries pace like a human typing instead of arriving instantly. It
// keeps at most one pending idle timer per user; every new delivery cancels
// the previous one, so a quiescent period resolves to "unavailable" exactly
// once no matter how many replies were sent.
type Sequencer struct {
	signals Signaler
	opts    Options

	// Injected for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(min, max time.Duration) time.Duration

	mu   sync.Mutex
	idle map[string]*time.Timer
}

func NewSequencer(signals Signaler, opts Options) *Sequencer {
	if opts.StepDelayMax < opts.StepDelayMin {
		opts.StepDelayMax = opts.StepDelayMin
	}
	if opts.IdleDelayMax < opts.IdleDelayMin {
		opts.IdleDelayMax = opts.IdleDelayMin
	}
	return &Sequencer{
		signals: signals,
		opts:    opts,
		sleep:   sleepContext,
		jitter:  randomBetween,
		idle:    make(map[string]*time.Timer),
	}
}

// SetTimingFuncs overrides the sleep and jitter functions. Test hook.
func (s *Sequencer) SetTimingFuncs(
	sleep func(ctx context.Context, d time.Duration) error,
	jitter func(min, max time.Duration) time.Duration,
) {
	s.sleep = sleep
	s.jitter = jitter
}

// Deliver runs the full choreography around action, all steps awaited in
// order: available, pause, read receipt, pause, composing, pause, action,
// available, then a debounced idle timer that settles presence to
// unavailable. A failing step aborts the remainder and propagates; the
// transient presence it leaves behind is resolved by the next delivery.
func (s *Sequencer) Deliver(ctx context.Context, userID string, ref bus.MessageRef, action func(ctx context.Context) error) error {
	s.cancelIdle(userID)

	if err := s.signals.SendPresence(ctx, userID, PresenceAvailable); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.jitter(s.opts.StepDelayMin, s.opts.StepDelayMax)); err != nil {
		return err
	}
	if err := s.signals.MarkRead(ctx, userID, ref); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.opts.StepDelayMin); err != nil {
		return err
	}
	if err := s.signals.SendPresence(ctx, userID, PresenceComposing); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.jitter(s.opts.StepDelayMin, s.opts.StepDelayMax)); err != nil {
		return err
	}

	if err := action(ctx); err != nil {
		return err
	}

	if err := s.signals.SendPresence(ctx, userID, PresenceAvailable); err != nil {
		return err
	}

	s.armIdle(userID)
	return nil
}

// Pace waits the randomized gap used between successive sends of one reply
// set.
func (s *Sequencer) Pace(ctx context.Context) error {
	return s.sleep(ctx, s.jitter(s.opts.StepDelayMin, s.opts.StepDelayMax))
}

func (s *Sequencer) cancelIdle(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.idle[userID]; ok {
		t.Stop()
		delete(s.idle, userID)
	}
}

func (s *Sequencer) armIdle(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.idle[userID]; ok {
		t.Stop()
	}
	d := s.jitter(s.opts.IdleDelayMin, s.opts.IdleDelayMax)
	s.idle[userID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.idle, userID)
		s.mu.Unlock()

		if err := s.signals.SendPresence(context.Background(), userID, PresenceUnavailable); err != nil {
			logger.WarnCF("humanizer", "Idle presence update failed", map[string]interface{}{
				logger.FieldUserID: userID,
				logger.FieldError:  err.Error(),
			})
		}
	})
}

// IdleTimerCount reports how many idle timers are pending. Used by tests and
// the janitor's status logging.
func (s *Sequencer) IdleTimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idle)
}

// StopAll cancels all pending idle timers without firing them.
func (s *Sequencer) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, t := range s.idle {
		t.Stop()
		delete(s.idle, userID)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}
