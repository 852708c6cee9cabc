package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
)

const (
	eventLineAdded       = "cart_line_added"
	eventLineIncremented = "cart_line_incremented"
	eventLineDecremented = "cart_line_decremented"
	eventLineRemoved     = "cart_line_removed"
	eventCartResynced    = "cart_resynced"
	eventGuestMerged     = "guest_cart_merged"
	eventCartCleared     = "cart_cleared"

	guestKey       = "guest"
	publishTimeout = 5 * time.Second
)

// Event is what the engine publishes after a cart change.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	UserID        string    `json:"userid,omitempty"`
	ProductID     string    `json:"productid,omitempty"`
	VariantID     string    `json:"variantid,omitempty"`
	Delta         int       `json:"delta,omitempty"`
	TotalQuantity int       `json:"total_quantity"`
	Merged        int       `json:"merged,omitempty"`
	Failed        int       `json:"failed,omitempty"`
	At            time.Time `json:"at"`
}

func (e *Engine) newEvent(typ string, id *auth.Identity) Event {
	ev := Event{ID: uuid.NewString(), Type: typ, At: time.Now().UTC()}
	if id != nil {
		ev.UserID = id.UserID
	}
	return ev
}

// publish is best effort: failures are logged and never reach the caller.
func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	key := ev.UserID
	if key == "" {
		key = guestKey
	}
	if err := e.pub.PublishEvent(ctx, e.topic, key, ev); err != nil {
		logging.FromContext(ctx, e.log).Warn("cart_event_publish_error", "type", ev.Type, "error", err)
	}
}
