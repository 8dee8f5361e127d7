package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payflow-app/payflow/internal/shared"
)

// Realtime rooms. Connected clients subscribe to the rooms matching their
// identity; delivery is fire-and-forget with no guarantee.
const (
	RoomAllUsers     = "all_users"
	RoomFinanceAdmin = "finance_admin"

	channelPrefix = "notify:"
)

// RoleRoom returns the per-role room name.
func RoleRoom(role shared.Role) string {
	return "role:" + role.Slug()
}

// Signal is the wire payload published to a room. Kind is either
// "notification" (carrying the row) or "counts_changed" (a lightweight ping
// telling clients to refresh their unread badge).
type Signal struct {
	Kind         string        `json:"kind"`
	Notification *Notification `json:"notification,omitempty"`
	At           time.Time     `json:"at"`
}

// Broadcaster publishes signals over Redis pub/sub. Failures are logged and
// never surface to the caller; the notification rows are already committed.
type Broadcaster struct {
	client *redis.Client
	logger *slog.Logger
	clock  func() time.Time
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(client *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		client: client,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Publish sends one signal to one room.
func (b *Broadcaster) Publish(ctx context.Context, room string, sig Signal) {
	if b == nil || b.client == nil {
		return
	}
	if sig.At.IsZero() {
		sig.At = b.clock()
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		b.log().Error("marshal realtime signal", slog.Any("error", err))
		return
	}
	if err := b.client.Publish(ctx, channelPrefix+room, payload).Err(); err != nil {
		b.log().Warn("publish realtime signal",
			slog.String("room", room),
			slog.Any("error", err),
		)
	}
}

// Announce issues the two per-batch signals: the notification payload and a
// counts-changed ping, to every room the batch is scoped to.
func (b *Broadcaster) Announce(ctx context.Context, rooms []string, note Notification) {
	if b == nil {
		return
	}
	for _, room := range rooms {
		b.Publish(ctx, room, Signal{Kind: "notification", Notification: &note})
		b.Publish(ctx, room, Signal{Kind: "counts_changed"})
	}
}

func (b *Broadcaster) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}
