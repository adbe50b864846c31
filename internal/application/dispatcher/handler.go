package dispatcher

import (
	"context"

	"github.com/garyjia/procurement-bot/internal/domain/event"
)

// Handler consumes one lifecycle event. Handlers for the same event run in
// subscription order.
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}
