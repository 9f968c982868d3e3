package notifier

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PushSubscription{}))
	return db
}

func testNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		DB:  db,
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func httpResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		name      string
		ev        orderEvent
		wantOK    bool
		wantTitle string
	}{
		{"placed", orderEvent{Type: "order_placed"}, true, "Order received"},
		{"preparing", orderEvent{Type: "order_status_changed", Status: "preparing"}, true, "In the kitchen"},
		{"out for delivery", orderEvent{Type: "order_status_changed", Status: "out_for_delivery"}, true, "Out for delivery"},
		{"delivered", orderEvent{Type: "order_status_changed", Status: "delivered"}, true, "Delivered"},
		{"cancelled", orderEvent{Type: "order_status_changed", Status: "cancelled"}, true, "Order cancelled"},
		{"unrelated type", orderEvent{Type: "cart_item_added"}, false, ""},
		{"unknown status", orderEvent{Type: "order_status_changed", Status: "warp"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body, ok := statusMessage(tt.ev)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTitle, title)
			if tt.wantOK {
				assert.NotEmpty(t, body)
			}
		})
	}
}

func TestHandle_SendsToEveryDeviceOfUser(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&[]models.PushSubscription{
		{UserID: 1, Endpoint: "https://push.example/a", P256dh: "k1", Auth: "a1"},
		{UserID: 1, Endpoint: "https://push.example/b", P256dh: "k2", Auth: "a2"},
		{UserID: 2, Endpoint: "https://push.example/c", P256dh: "k3", Auth: "a3"},
	}).Error)

	n := testNotifier(db)
	var sent []string
	n.send = func(ctx context.Context, sub *webpush.Subscription, payload []byte) (*http.Response, error) {
		sent = append(sent, sub.Endpoint)
		assert.Contains(t, string(payload), "Out for delivery")
		return httpResponse(http.StatusCreated), nil
	}

	raw := `{"type": "order_status_changed", "order_id": 5, "user_id": 1, "status": "out_for_delivery"}`
	require.NoError(t, n.handle(context.Background(), []byte(raw)))

	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, sent)
}

func TestHandle_PrunesGoneSubscriptions(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&[]models.PushSubscription{
		{UserID: 1, Endpoint: "https://push.example/dead", P256dh: "k1", Auth: "a1"},
		{UserID: 1, Endpoint: "https://push.example/alive", P256dh: "k2", Auth: "a2"},
	}).Error)

	n := testNotifier(db)
	n.send = func(ctx context.Context, sub *webpush.Subscription, payload []byte) (*http.Response, error) {
		if strings.HasSuffix(sub.Endpoint, "dead") {
			return httpResponse(http.StatusGone), nil
		}
		return httpResponse(http.StatusCreated), nil
	}

	raw := `{"type": "order_placed", "order_id": 5, "user_id": 1, "status": "placed"}`
	require.NoError(t, n.handle(context.Background(), []byte(raw)))

	var remaining []models.PushSubscription
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "https://push.example/alive", remaining[0].Endpoint)
}

func TestHandle_IgnoresUninterestingEvents(t *testing.T) {
	db := setupDB(t)
	n := testNotifier(db)
	calls := 0
	n.send = func(ctx context.Context, sub *webpush.Subscription, payload []byte) (*http.Response, error) {
		calls++
		return httpResponse(http.StatusCreated), nil
	}

	require.NoError(t, n.handle(context.Background(), []byte(`{"type": "cart_item_added", "user_id": 1}`)))
	assert.Zero(t, calls)
}

func TestHandle_MalformedPayload(t *testing.T) {
	db := setupDB(t)
	n := testNotifier(db)
	assert.Error(t, n.handle(context.Background(), []byte("not json")))
}
