package transport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/config"
	"zapmenu/pkg/humanizer"
	"zapmenu/pkg/logger"
)

// WhatsApp is the wire transport: it owns the whatsmeow client and its
// durable pairing session, turns incoming events into bus messages, and
// exposes the send/presence/receipt surface the sequencer drives. Outbound
// sends share a rate limiter so a burst of replies never floods the
// connection.
type WhatsApp struct {
	cfg       config.WhatsAppConfig
	bus       *bus.MessageBus
	container *sqlstore.Container
	limiter   *rate.Limiter

	mu        sync.Mutex
	client    *whatsmeow.Client
	connected bool
}

func NewWhatsApp(ctx context.Context, cfg config.WhatsAppConfig, mb *bus.MessageBus) (*WhatsApp, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.SessionDBPath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	ratePerSec := cfg.SendRatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}

	return &WhatsApp{
		cfg:       cfg,
		bus:       mb,
		container: container,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}, nil
}

// Connect brings the client online. When no pairing session exists it prints
// a QR code on stdout and blocks until the phone scans it or ctx is
// cancelled.
func (w *WhatsApp) Connect(ctx context.Context) error {
	device, err := w.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Noop)
	client.AddEventHandler(w.handleEvent)

	w.mu.Lock()
	w.client = client
	w.mu.Unlock()

	if client.Store.ID == nil {
		return w.pair(ctx, client)
	}

	logger.InfoC("whatsapp", "Reusing existing pairing session")
	return client.Connect()
}

func (w *WhatsApp) pair(ctx context.Context, client *whatsmeow.Client) error {
	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			logger.InfoC("whatsapp", "Scan the QR code below with WhatsApp on your phone")
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
		case "success":
			logger.InfoC("whatsapp", "Pairing complete")
		case "timeout":
			return fmt.Errorf("qr pairing timed out")
		default:
			logger.WarnCF("whatsapp", "Unexpected pairing event", map[string]interface{}{
				logger.FieldReason: evt.Event,
			})
		}
	}
	return nil
}

func (w *WhatsApp) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		w.handleMessage(e)

	case *events.Connected:
		w.mu.Lock()
		w.connected = true
		w.mu.Unlock()
		logger.InfoC("whatsapp", "Connected to WhatsApp")

	case *events.Disconnected:
		w.mu.Lock()
		w.connected = false
		w.mu.Unlock()
		// The client reconnects on its own; this is informational.
		logger.WarnC("whatsapp", "Disconnected from WhatsApp, waiting for automatic reconnect")

	case *events.LoggedOut:
		logger.ErrorCF("whatsapp", "Device was logged out remotely; delete the session database and pair again", map[string]interface{}{
			"session_db": w.cfg.SessionDBPath,
		})

	case *events.StreamReplaced:
		logger.ErrorC("whatsapp", "Stream replaced by another client using the same session")
	}
}

func (w *WhatsApp) handleMessage(e *events.Message) {
	// Direct chats only: groups, broadcast and status updates are not
	// conversations this bot holds.
	if e.Info.IsFromMe || e.Info.Chat.Server != types.DefaultUserServer {
		return
	}

	text := extractText(e.Message)
	if text == "" {
		return
	}

	logger.InfoCF("whatsapp", "Message received", map[string]interface{}{
		logger.FieldUserID:  e.Info.Chat.User,
		logger.FieldPreview: truncateString(text, 50),
	})

	w.bus.PublishInbound(bus.InboundMessage{
		UserID:   e.Info.Chat.User,
		Text:     text,
		PushName: e.Info.PushName,
		Ref: bus.MessageRef{
			ID:     string(e.Info.ID),
			Chat:   e.Info.Chat.String(),
			Sender: e.Info.Sender.String(),
		},
	})
}

func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// SendText delivers one plain text message to the user's direct chat.
func (w *WhatsApp) SendText(ctx context.Context, userID, text string) error {
	client, err := w.activeClient()
	if err != nil {
		return err
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	jid := types.NewJID(userID, types.DefaultUserServer)
	if _, err := client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	logger.DebugCF("whatsapp", "Message sent", map[string]interface{}{
		logger.FieldUserID:  userID,
		logger.FieldPreview: truncateString(text, 50),
	})
	return nil
}

// SendPresence maps the sequencer's presence states onto the protocol:
// composing and available are chat-scoped, unavailable is global.
func (w *WhatsApp) SendPresence(ctx context.Context, userID string, state humanizer.Presence) error {
	client, err := w.activeClient()
	if err != nil {
		return err
	}
	jid := types.NewJID(userID, types.DefaultUserServer)

	switch state {
	case humanizer.PresenceComposing:
		return client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
	case humanizer.PresenceAvailable:
		if err := client.SendPresence(ctx, types.PresenceAvailable); err != nil {
			return err
		}
		return client.SendChatPresence(ctx, jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
	case humanizer.PresenceUnavailable:
		return client.SendPresence(ctx, types.PresenceUnavailable)
	default:
		return fmt.Errorf("unknown presence state %q", state)
	}
}

// MarkRead acknowledges the referenced inbound message with a read receipt.
// A zero ref is a no-op.
func (w *WhatsApp) MarkRead(ctx context.Context, userID string, ref bus.MessageRef) error {
	if ref.IsZero() {
		return nil
	}
	client, err := w.activeClient()
	if err != nil {
		return err
	}

	chat, err := types.ParseJID(ref.Chat)
	if err != nil {
		return fmt.Errorf("parse chat jid: %w", err)
	}
	sender, err := types.ParseJID(ref.Sender)
	if err != nil {
		return fmt.Errorf("parse sender jid: %w", err)
	}

	return client.MarkRead(ctx, []types.MessageID{types.MessageID(ref.ID)}, time.Now(), chat, sender)
}

// IsLoggedIn reports whether a pairing session exists and the client is
// authenticated.
func (w *WhatsApp) IsLoggedIn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.client != nil && w.client.IsLoggedIn()
}

func (w *WhatsApp) Disconnect() {
	w.mu.Lock()
	client := w.client
	w.client = nil
	w.connected = false
	w.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	if err := w.container.Close(); err != nil {
		logger.WarnCF("whatsapp", "Error closing session store", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	logger.InfoC("whatsapp", "WhatsApp transport stopped")
}

func (w *WhatsApp) activeClient() (*whatsmeow.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil, fmt.Errorf("whatsapp client not connected")
	}
	return w.client, nil
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
