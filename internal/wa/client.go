package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vtrbr2/message-ia-bot/internal/metrics"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
	Metrics   *metrics.Metrics
}

// MessageProcessor consumes inbound text messages. The engine implements it;
// the adapter never exposes whatsmeow types past this boundary.
type MessageProcessor interface {
	ProcessInbound(ctx context.Context, senderID, body, pushName string)
}

// Client wraps the WhatsMeow client behind the narrow transport contract the
// dialog engine depends on: send, contact lookup, connection status.
type Client struct {
	client    *whatsmeow.Client
	logger    *slog.Logger
	metrics   *metrics.Metrics
	processor MessageProcessor
}

// New creates a new WhatsApp client instance backed by an SQLite store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	wc := &Client{
		client:  client,
		logger:  logger.With("component", "wa"),
		metrics: cfg.Metrics,
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// SetMessageProcessor registers the inbound message consumer.
func (c *Client) SetMessageProcessor(processor MessageProcessor) {
	c.processor = processor
}

// Start connects the client and handles login/QR pairing flow.
func (c *Client) Start(ctx context.Context) error {
	if c.client.Store.ID == nil {
		c.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					c.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}

	c.logger.Info("whatsapp client connected")
	return nil
}

// Close disconnects the WhatsApp client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

// Status reports connection state and the paired identity, for the
// transport-status and health endpoints.
func (c *Client) Status() (bool, string) {
	if c == nil || c.client == nil || c.client.Store.ID == nil {
		return false, ""
	}
	return c.client.IsConnected(), c.client.Store.ID.User
}

// SendText sends a plain text message to the participant.
func (c *Client) SendText(ctx context.Context, participant, text string) error {
	jid, err := parseJID(participant)
	if err != nil {
		return err
	}
	message := &waProto.Message{Conversation: proto.String(text)}
	if _, err := c.client.SendMessage(ctx, jid, message); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues("text").Inc()
	}
	return nil
}

// DisplayName looks the participant up in the contact store; empty when
// unknown.
func (c *Client) DisplayName(participant string) string {
	jid, err := parseJID(participant)
	if err != nil {
		return ""
	}
	info, err := c.client.Store.Contacts.GetContact(context.Background(), jid)
	if err != nil || !info.Found {
		return ""
	}
	if info.FullName != "" {
		return info.FullName
	}
	return info.PushName
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	msg := evt.Message
	if msg == nil {
		return
	}

	text := extractText(msg)
	if text == "" {
		c.logger.Debug("ignoring unsupported message type", "from", evt.Info.Sender.String())
		return
	}

	sender := evt.Info.Chat.ToNonAD().String()
	c.logger.Info("received text message", "from", sender)

	if c.processor != nil {
		go c.processor.ProcessInbound(context.Background(), sender, text, evt.Info.PushName)
	}
}

func extractText(msg *waProto.Message) string {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetText()
	default:
		return ""
	}
}

func parseJID(participant string) (types.JID, error) {
	if strings.Contains(participant, "@") {
		jid, err := types.ParseJID(participant)
		if err != nil {
			return types.JID{}, fmt.Errorf("parse jid %q: %w", participant, err)
		}
		return jid, nil
	}
	return types.NewJID(participant, types.DefaultUserServer), nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
