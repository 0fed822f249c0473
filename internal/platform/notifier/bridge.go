package notifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// changeSubject is the NATS subject carrying document change events between
// server instances. The payload is the publishing instance's id, used only to
// suppress self-echo.
const changeSubject = "medifile.documents.changed"

// Bridge republishes local change events to NATS and re-emits remote events
// into the local Hub, so a mutation handled by one server instance still
// refreshes list views connected to another.
type Bridge struct {
	nc         *nats.Conn
	hub        *Hub
	instanceID string
	sub        *nats.Subscription
	logger     zerolog.Logger
}

// ConnectBridge dials NATS and wires the hub's forward hook. The connection
// retries forever with a short backoff.
func ConnectBridge(url string, hub *Hub, logger zerolog.Logger) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("medifile-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		nc:         nc,
		hub:        hub,
		instanceID: uuid.New().String(),
		logger:     logger,
	}

	sub, err := nc.Subscribe(changeSubject, func(msg *nats.Msg) {
		if string(msg.Data) == b.instanceID {
			return // our own event; local subscribers were already notified
		}
		hub.broadcast()
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	b.sub = sub

	hub.setForward(func() {
		if err := nc.Publish(changeSubject, []byte(b.instanceID)); err != nil {
			logger.Warn().Err(err).Msg("failed to forward change event")
		}
	})

	logger.Info().Str("url", url).Msg("change-event bridge connected")
	return b, nil
}

// Close detaches the forward hook and drops the NATS connection.
func (b *Bridge) Close() {
	b.hub.setForward(nil)
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
}
