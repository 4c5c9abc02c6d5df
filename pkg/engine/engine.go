package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/escalation"
	"zapmenu/pkg/logger"
	"zapmenu/pkg/menu"
	"zapmenu/pkg/observability"
	"zapmenu/pkg/session"
	"zapmenu/pkg/store"
)

const menuCommand = "menu"

// Repository is the slice of the durable store the engine reads per turn.
type Repository interface {
	FindUser(ctx context.Context, userID string) (*store.Enrollment, error)
	CreateUser(ctx context.Context, userID string) (*store.Enrollment, error)
	GetMenu(ctx context.Context, menuID string) (*menu.Menu, error)
}

type TextSender interface {
	SendText(ctx context.Context, userID, text string) error
}

// Deliverer wraps a send in the humanized choreography and paces gaps
// between successive sends.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, ref bus.MessageRef, action func(ctx context.Context) error) error
	Pace(ctx context.Context) error
}

type Options struct {
	RootMenuID         string
	WelcomeMessage     string
	InvalidOptionReply string
	FallbackReply      string
	SessionMaxAge      time.Duration
}

// Engine is the per-user conversation state machine: it resolves the current
// menu, matches input against options and meta-commands, advances state, and
// delivers the resulting reply set through the sequencer.
type Engine struct {
	repo      Repository
	transport TextSender
	seq       Deliverer
	detector  *escalation.Detector
	sessions  *session.Store
	scheduler *session.Scheduler
	metrics   *observability.Metrics
	opts      Options

	now func() time.Time
}

func NewEngine(
	repo Repository,
	transport TextSender,
	seq Deliverer,
	detector *escalation.Detector,
	sessions *session.Store,
	scheduler *session.Scheduler,
	metrics *observability.Metrics,
	opts Options,
) *Engine {
	return &Engine{
		repo:      repo,
		transport: transport,
		seq:       seq,
		detector:  detector,
		sessions:  sessions,
		scheduler: scheduler,
		metrics:   metrics,
		opts:      opts,
		now:       time.Now,
	}
}

// SetClock overrides the engine's time source. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// HandleInbound processes one inbound message. The dispatcher guarantees
// calls for the same user never interleave; different users run
// concurrently.
func (e *Engine) HandleInbound(ctx context.Context, msg bus.InboundMessage) error {
	userID := msg.UserID

	// Terminated sessions ignore everything until an external reset.
	if e.sessions.Terminated(userID) {
		return nil
	}

	// The trigger check pre-empts all menu logic, even enrollment.
	if fired, err := e.detector.CheckAndEscalate(ctx, userID, msg.Ref, msg.Text); fired || err != nil {
		return err
	}

	enrollment, err := e.repo.FindUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	firstTurn := false
	if enrollment == nil {
		if enrollment, err = e.repo.CreateUser(ctx, userID); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		firstTurn = true
		logger.InfoCF("engine", "New user enrolled", map[string]interface{}{
			logger.FieldUserID: userID,
		})
	}

	deadline := enrollment.FirstSeenAt.Add(e.opts.SessionMaxAge)
	if !firstTurn && !e.now().Before(deadline) {
		e.sessions.Terminate(userID, session.ReasonLifetime)
		return nil
	}

	// Re-arm with the remaining time so an idle user expires at a fixed
	// wall-clock offset from enrollment, however many turns they take.
	e.scheduler.ArmUntil(userID, deadline)
	e.sessions.SetDeadline(userID, deadline)

	if firstTurn {
		e.sessions.SetMenu(userID, e.opts.RootMenuID)
		if err := e.deliver(ctx, userID, msg.Ref, e.opts.WelcomeMessage); err != nil {
			return err
		}
		if err := e.seq.Pace(ctx); err != nil {
			return err
		}
		return e.renderMenuByID(ctx, userID, msg.Ref, e.opts.RootMenuID)
	}

	current := e.sessions.CurrentMenu(userID)
	m, err := e.repo.GetMenu(ctx, current)
	if err != nil {
		return fmt.Errorf("load menu %q: %w", current, err)
	}
	if m == nil {
		// Reference data changed under us; self-heal to the root menu.
		logger.WarnCF("engine", "Current menu missing, resetting to root", map[string]interface{}{
			logger.FieldUserID: userID,
			logger.FieldMenuID: current,
		})
		e.sessions.SetMenu(userID, e.opts.RootMenuID)
		return e.renderMenuByID(ctx, userID, msg.Ref, e.opts.RootMenuID)
	}

	trimmed := strings.TrimSpace(msg.Text)

	if strings.EqualFold(trimmed, menuCommand) {
		e.sessions.SetMenu(userID, e.opts.RootMenuID)
		return e.renderMenuByID(ctx, userID, msg.Ref, e.opts.RootMenuID)
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		if opt := m.ButtonByOrdinal(n); opt != nil {
			return e.selectButton(ctx, userID, msg.Ref, opt)
		}
	}

	// Unrecognized input: replay the menu's message options when it has
	// any, otherwise tell the user how to answer.
	if len(m.Messages()) > 0 {
		return e.deliverMessages(ctx, userID, msg.Ref, m)
	}
	return e.deliver(ctx, userID, msg.Ref, e.opts.FallbackReply)
}

func (e *Engine) selectButton(ctx context.Context, userID string, ref bus.MessageRef, opt *menu.Option) error {
	if opt.Target == "" {
		// A targetless button answers with its own label and stays on the
		// current menu.
		return e.deliver(ctx, userID, ref, menu.FormatEmphasis(opt.Text))
	}

	next, err := e.repo.GetMenu(ctx, opt.Target)
	if err != nil {
		return fmt.Errorf("load menu %q: %w", opt.Target, err)
	}
	if next == nil {
		logger.WarnCF("engine", "Button target does not resolve to a menu", map[string]interface{}{
			logger.FieldUserID: userID,
			logger.FieldMenuID: opt.Target,
		})
		return e.deliver(ctx, userID, ref, e.opts.InvalidOptionReply)
	}

	e.sessions.SetMenu(userID, opt.Target)
	return e.renderMenu(ctx, userID, ref, next)
}

func (e *Engine) renderMenuByID(ctx context.Context, userID string, ref bus.MessageRef, menuID string) error {
	m, err := e.repo.GetMenu(ctx, menuID)
	if err != nil {
		return fmt.Errorf("load menu %q: %w", menuID, err)
	}
	if m == nil {
		logger.WarnCF("engine", "Menu not found, nothing to render", map[string]interface{}{
			logger.FieldUserID: userID,
			logger.FieldMenuID: menuID,
		})
		return nil
	}
	return e.renderMenu(ctx, userID, ref, m)
}

// renderMenu delivers every message option in order, then the numbered
// prompt when the menu has at least one button.
func (e *Engine) renderMenu(ctx context.Context, userID string, ref bus.MessageRef, m *menu.Menu) error {
	if err := e.deliverMessages(ctx, userID, ref, m); err != nil {
		return err
	}
	if len(m.Buttons()) > 0 {
		return e.deliver(ctx, userID, ref, m.RenderPrompt())
	}
	return nil
}

func (e *Engine) deliverMessages(ctx context.Context, userID string, ref bus.MessageRef, m *menu.Menu) error {
	for _, opt := range m.Messages() {
		if err := e.deliver(ctx, userID, ref, menu.FormatEmphasis(opt.Text)); err != nil {
			return err
		}
		if err := e.seq.Pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// deliver is the single outbound path: it sends through the sequencer and
// then re-checks the sent text for escalation triggers, so an
// operator-authored menu entry containing the trigger phrase still hands
// off.
func (e *Engine) deliver(ctx context.Context, userID string, ref bus.MessageRef, text string) error {
	err := e.seq.Deliver(ctx, userID, ref, func(ctx context.Context) error {
		if e.metrics != nil {
			e.metrics.OutboundMessages.Inc()
		}
		return e.transport.SendText(ctx, userID, text)
	})
	if err != nil {
		return err
	}

	if e.detector.Match(text) {
		return e.detector.Escalate(ctx, userID, ref)
	}
	return nil
}
