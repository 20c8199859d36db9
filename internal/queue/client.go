package queue

import "context"

// Client delivers generation job messages to a queue backend. A nil Client
// means jobs run in-process instead of being queued.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
