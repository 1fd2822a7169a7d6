package store

import (
	"context"
	"errors"
	"fmt"

	"chat-widget/internal/models"
)

// DefaultCollection is the collection messages live in unless configured otherwise.
const DefaultCollection = "messages"

// ErrNotFound is wrapped by Update and Delete when the id does not exist.
var ErrNotFound = errors.New("message not found")

// MessageStore is the client side of the hosted message collection.
// QueryOrdered and Subscribe both observe the collection ordered by date
// ascending, ties broken by insertion order.
type MessageStore interface {
	Create(ctx context.Context, msg models.Message) (string, error)
	Update(ctx context.Context, id string, update models.MessageUpdate) error
	Delete(ctx context.Context, id string) error
	QueryOrdered(ctx context.Context) ([]models.Message, error)
	// Subscribe delivers one batch of added events for the current contents,
	// then incremental batches until ctx is done. Batches are delivered
	// serially from a single goroutine. Subscribe returns once the feed is
	// established.
	Subscribe(ctx context.Context, fn func(models.Batch)) error
}

// Error is returned by every store operation that fails.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, ID: id, Err: err}
}
