package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/payflow-app/payflow/internal/shared"
)

// Router is the single entry point every request-mutation handler calls
// after changing state: it resolves recipients, persists the rows, then
// signals connected clients. Broadcast failures degrade to logs; the caller
// only sees persistence errors.
type Router struct {
	repo      Repository
	dir       UserDirectory
	broadcast *Broadcaster
	logger    *slog.Logger
	clock     func() time.Time
}

// NewRouter constructs a Router.
func NewRouter(repo Repository, dir UserDirectory, broadcast *Broadcaster, logger *slog.Logger) *Router {
	return &Router{
		repo:      repo,
		dir:       dir,
		broadcast: broadcast,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Route fans an event out to its recipient set. Returns the created rows;
// an empty result with nil error means the event routed to nobody.
func (r *Router) Route(ctx context.Context, event Event, rc *RequestContext, title, msg string) ([]Notification, error) {
	recipients, err := ResolveRecipients(ctx, r.dir, event, rc)
	if err != nil {
		return nil, fmt.Errorf("notify: resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		r.log().Warn("event routed to no recipients", slog.String("event", string(event)))
		return nil, nil
	}

	var requestID *int64
	if rc != nil {
		id := rc.RequestID
		requestID = &id
	}
	now := r.now()
	notes := make([]Notification, 0, len(recipients))
	rooms := map[string]bool{RoomAllUsers: true}
	for _, rec := range recipients {
		userID := rec.ID
		notes = append(notes, Notification{
			UserID:    &userID,
			Event:     event,
			RequestID: requestID,
			Title:     title,
			Message:   msg,
			CreatedAt: now,
		})
		rooms[RoleRoom(rec.Role)] = true
		if rec.Role == shared.RoleFinanceAdmin {
			rooms[RoomFinanceAdmin] = true
		}
	}

	created, err := r.repo.InsertBatch(ctx, notes)
	if err != nil {
		return nil, fmt.Errorf("notify: persist notifications: %w", err)
	}

	if len(created) > 0 {
		roomList := make([]string, 0, len(rooms))
		for room := range rooms {
			roomList = append(roomList, room)
		}
		r.broadcast.Announce(ctx, roomList, created[0])
	}
	return created, nil
}

// RouteToUser targets one known recipient directly, bypassing the routing
// table. Used for login codes and other per-identity messages.
func (r *Router) RouteToUser(ctx context.Context, event Event, rec Recipient, title, msg string) (*Notification, error) {
	userID := rec.ID
	created, err := r.repo.InsertBatch(ctx, []Notification{{
		UserID:    &userID,
		Event:     event,
		Title:     title,
		Message:   msg,
		CreatedAt: r.now(),
	}})
	if err != nil {
		return nil, fmt.Errorf("notify: persist notification: %w", err)
	}
	if len(created) == 0 {
		return nil, nil
	}
	r.broadcast.Announce(ctx, []string{RoomAllUsers, RoleRoom(rec.Role)}, created[0])
	return &created[0], nil
}

// AlreadyNotifiedOn is the duplicate-day guard used by the background
// sweeps: it narrows (but cannot eliminate) the race between the hourly
// ticker and a foreground mutation observing "not yet notified today" at the
// same moment. Acceptable: the worst case is one duplicate reminder.
func (r *Router) AlreadyNotifiedOn(ctx context.Context, requestID int64, event Event, day time.Time) (bool, error) {
	return r.repo.ExistsForRequestOn(ctx, requestID, event, day)
}

// LastTimingAlertAt exposes the most recent timing alert of either kind for
// a request, for the reminder spacing decision.
func (r *Router) LastTimingAlertAt(ctx context.Context, requestID int64) (*time.Time, error) {
	return r.repo.LastTimingAlertAt(ctx, requestID)
}

// ListFor returns the notifications the viewer is allowed to see.
func (r *Router) ListFor(ctx context.Context, viewer Recipient, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.repo.ListForUser(ctx, viewer.ID, VisibleEvents(viewer.Role, viewer.Email), limit, offset)
}

// UnreadCountFor returns the viewer's unread badge count under the same
// visibility filter as ListFor.
func (r *Router) UnreadCountFor(ctx context.Context, viewer Recipient) (int, error) {
	return r.repo.UnreadCount(ctx, viewer.ID, VisibleEvents(viewer.Role, viewer.Email))
}

// MarkRead flips one notification owned by the viewer.
func (r *Router) MarkRead(ctx context.Context, viewer Recipient, id int64) error {
	return r.repo.MarkRead(ctx, viewer.ID, id)
}

// MarkAllRead flips every visible unread notification for the viewer.
func (r *Router) MarkAllRead(ctx context.Context, viewer Recipient) (int64, error) {
	return r.repo.MarkAllRead(ctx, viewer.ID, VisibleEvents(viewer.Role, viewer.Email))
}

func (r *Router) now() time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return time.Now().UTC()
}

func (r *Router) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a currency amount for notification messages,
// e.g. "IDR 1,250,000.00".
func FormatAmount(currency string, amount float64) string {
	return amountPrinter.Sprintf("%s %v", currency,
		number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
