package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	notifyChannel = "order_events"

	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Listener bridges the orders_notify_change trigger to the in-process Hub.
// It holds its own database connection, separate from the gorm pool.
type Listener struct {
	hub *Hub
	log *slog.Logger
	pql *pq.Listener
}

func NewListener(dsn string, hub *Hub, log *slog.Logger) *Listener {
	l := &Listener{hub: hub, log: log}
	l.pql = pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("order listener connection event", "event", ev, "error", err)
		}
	})
	return l
}

// Run blocks until ctx is cancelled, feeding notifications into the hub.
// A nil notification marks a reconnect, after which events sent while the
// connection was down are gone; clients re-fetch the order on reconnect.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.pql.Listen(notifyChannel); err != nil {
		return fmt.Errorf("listen on %s: %w", notifyChannel, err)
	}
	l.log.Info("order event listener started", "channel", notifyChannel)

	for {
		select {
		case <-ctx.Done():
			return l.pql.Close()
		case n := <-l.pql.Notify:
			if n == nil {
				continue
			}
			if err := l.dispatch(n.Extra); err != nil {
				l.log.Warn("dropping malformed order notification", "error", err)
			}
		case <-time.After(pingInterval):
			go func() {
				if err := l.pql.Ping(); err != nil {
					l.log.Warn("order listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *Listener) dispatch(payload string) error {
	var ev OrderEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("decode notification payload: %w", err)
	}
	l.hub.Publish(ev)
	return nil
}
