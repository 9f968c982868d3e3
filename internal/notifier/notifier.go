package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

const (
	orderTopic    = "order_events"
	consumerGroup = "curryleaf-notifier"
)

type orderEvent struct {
	Type      string  `json:"type"`
	OrderID   uint    `json:"order_id"`
	Reference string  `json:"reference"`
	UserID    uint    `json:"user_id"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
}

type pushPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// Notifier consumes order events and delivers browser push notifications
// to every device the customer registered.
type Notifier struct {
	DB     *gorm.DB
	Log    *slog.Logger
	reader *kafka.Reader

	subject string
	public  string
	private string

	// send is swapped out in tests.
	send func(ctx context.Context, sub *webpush.Subscription, payload []byte) (*http.Response, error)
}

func New(db *gorm.DB, log *slog.Logger, brokers []string, subject, vapidPublic, vapidPrivate string) *Notifier {
	n := &Notifier{
		DB:      db,
		Log:     log,
		subject: subject,
		public:  vapidPublic,
		private: vapidPrivate,
	}
	n.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  consumerGroup,
		Topic:    orderTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	n.send = func(ctx context.Context, sub *webpush.Subscription, payload []byte) (*http.Response, error) {
		return webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
			Subscriber:      n.subject,
			VAPIDPublicKey:  n.public,
			VAPIDPrivateKey: n.private,
			TTL:             60,
		})
	}
	return n
}

// Run consumes until ctx is cancelled. Messages are committed after
// handling so a crash redelivers instead of dropping.
func (n *Notifier) Run(ctx context.Context) error {
	defer n.reader.Close()
	n.Log.Info("notifier started", "topic", orderTopic, "group", consumerGroup)

	for {
		msg, err := n.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		if err := n.handle(ctx, msg.Value); err != nil {
			n.Log.Warn("could not handle order event", "error", err)
		}
		if err := n.reader.CommitMessages(ctx, msg); err != nil {
			n.Log.Warn("could not commit offset", "error", err)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, raw []byte) error {
	var ev orderEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}

	title, body, ok := statusMessage(ev)
	if !ok {
		return nil
	}

	var subs []models.PushSubscription
	if err := n.DB.Where("user_id = ?", ev.UserID).Find(&subs).Error; err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:   title,
		Body:    body,
		OrderID: ev.OrderID,
		Status:  ev.Status,
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	for _, sub := range subs {
		resp, err := n.send(ctx, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, payload)
		if err != nil {
			n.Log.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		// The push service reports gone endpoints; keep the table clean.
		if status == http.StatusNotFound || status == http.StatusGone {
			if err := n.DB.Delete(&models.PushSubscription{}, sub.ID).Error; err != nil {
				n.Log.Warn("could not prune dead subscription", "id", sub.ID, "error", err)
			} else {
				n.Log.Info("pruned dead push subscription", "id", sub.ID)
			}
			continue
		}
		if status >= 400 {
			n.Log.Warn("push rejected", "endpoint", sub.Endpoint, "status", status)
		}
	}
	return nil
}

// statusMessage maps an event to the copy shown on the lock screen. Events
// that should not notify report ok=false.
func statusMessage(ev orderEvent) (title, body string, ok bool) {
	switch ev.Type {
	case "order_placed":
		return "Order received",
			"Your order is in. We'll let you know when the kitchen picks it up.", true
	case "order_status_changed":
	default:
		return "", "", false
	}

	switch ev.Status {
	case string(models.OrderStatusPreparing):
		return "In the kitchen", "Your food is being prepared.", true
	case string(models.OrderStatusOutForDelivery):
		return "Out for delivery", "Your rider is on the way.", true
	case string(models.OrderStatusDelivered):
		return "Delivered", "Enjoy your meal!", true
	case string(models.OrderStatusCancelled):
		return "Order cancelled", "Your order was cancelled. Any payment will be refunded.", true
	default:
		return "", "", false
	}
}
