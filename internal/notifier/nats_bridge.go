package notifier

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBridge relays change events over a NATS subject. Every node subscribes individually
// (no queue group) since each one serves its own views.
type NATSBridge struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSBridge constructs a bridge publishing on "<base>.collections".
func NewNATSBridge(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *NATSBridge {
	if subjectBase == "" {
		subjectBase = "portal"
	}
	return &NATSBridge{
		conn:    conn,
		subject: strings.ReplaceAll(subjectBase, ":", ".") + ".collections",
		logger:  logger.With().Str("component", "nats_bridge").Logger(),
	}
}

func (b *NATSBridge) Name() string { return "nats" }

func (b *NATSBridge) Publish(_ context.Context, payload []byte) error {
	return b.conn.Publish(b.subject, payload)
}

func (b *NATSBridge) Subscribe(ctx context.Context, handle func([]byte)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		handle(msg.Data)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain change event subscription")
		}
	}()
	return nil
}
