// Package watch delivers filesystem change notifications for a set of
// artifact addresses.
package watch

import (
	"context"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
)

// Kind classifies a change.
type Kind string

const (
	Created  Kind = "created"
	Modified Kind = "modified"
	Deleted  Kind = "deleted"
)

// Event is one change to one address.
type Event struct {
	Kind Kind
	Path string
}

// Batch groups events delivered together, in delivery order.
type Batch []Event

// Subscription is a live stream of batches. The channel is closed when the
// subscription ends for any reason.
type Subscription interface {
	Events() <-chan Batch
	Close() error
}

// Notifier subscribes to changes of a fixed address set.
type Notifier interface {
	Subscribe(ctx context.Context, addrs []artifact.Address) (Subscription, error)
}
