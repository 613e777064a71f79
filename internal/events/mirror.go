// Package events mirrors room events onto NATS for ops tooling and external
// consumers. The in-process gateway remains the authoritative delivery path;
// the mirror is publish-only and strictly optional.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubjectPrefix is the subject namespace room events are mirrored to.
const DefaultSubjectPrefix = "quizroom.events"

// Mirror publishes a copy of every room event to NATS under
// <prefix>.<event>.
type Mirror struct {
	nc     *nats.Conn
	prefix string
}

// NewMirror connects to NATS. An empty URL is rejected by nats.Connect; gate
// construction on configuration instead.
func NewMirror(url, prefix string) (*Mirror, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Mirror{nc: nc, prefix: prefix}, nil
}

// Publish mirrors one room event. Failures are logged, never surfaced to the
// room: the mirror must not affect gameplay.
func (m *Mirror) Publish(roomCode, event string, payload any) {
	subject := fmt.Sprintf("%s.%s", m.prefix, event)

	envelope := map[string]any{
		"eventId":   uuid.New().String(),
		"event":     event,
		"roomCode":  roomCode,
		"timestamp": time.Now().UTC(),
		"payload":   payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal mirrored event")
		return
	}

	if err := m.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to mirror event to NATS")
	}
}

// Close drains the connection.
func (m *Mirror) Close() {
	if m.nc != nil {
		m.nc.Close()
	}
}
