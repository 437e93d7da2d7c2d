package bus

import (
	"context"
	"errors"
	"time"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// StreamOptions configures how a subscription is drained.
type StreamOptions struct {
	// Emit writes one message to the client. An error ends the stream.
	Emit func(chat.Message) error
	// Filter drops messages for which it returns false. Nil delivers everything.
	Filter func(chat.Message) bool
	// Keepalive is the idle interval after which OnIdle is called. Zero disables it.
	Keepalive time.Duration
	// OnIdle runs after Keepalive without a write to the client. An error ends the stream.
	OnIdle func() error
	// Logger receives lag notices. Optional.
	Logger types.Logger
}

// Stream drains sub until ctx is cancelled, the bus closes, or a client write
// fails. Cancellation and bus shutdown return nil; a write failure is returned.
// No message is emitted once ctx is done. OnIdle fires when nothing has been
// written for Keepalive, including while every incoming message is filtered out.
func Stream(ctx context.Context, sub *Subscription, opts StreamOptions) error {
	if opts.Emit == nil {
		return errors.New("bus: stream requires an Emit func")
	}

	lastWrite := time.Now()
	for {
		if opts.Keepalive > 0 && time.Since(lastWrite) >= opts.Keepalive {
			if opts.OnIdle != nil {
				if err := opts.OnIdle(); err != nil {
					return err
				}
			}
			lastWrite = time.Now()
		}

		msg, err := recvUntil(ctx, sub, opts.Keepalive, lastWrite)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrClosed):
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			continue
		default:
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				if opts.Logger != nil {
					opts.Logger.Debug("Subscriber lagged", "skipped", lagged.Skipped)
				}
				continue
			}
			return err
		}

		if ctx.Err() != nil {
			return nil
		}
		if opts.Filter != nil && !opts.Filter(msg) {
			continue
		}
		if err := opts.Emit(msg); err != nil {
			return err
		}
		lastWrite = time.Now()
	}
}

// recvUntil waits for the next message, giving up at lastWrite+keepalive.
func recvUntil(ctx context.Context, sub *Subscription, keepalive time.Duration, lastWrite time.Time) (chat.Message, error) {
	if keepalive <= 0 {
		return sub.Recv(ctx)
	}
	recvCtx, cancel := context.WithDeadline(ctx, lastWrite.Add(keepalive))
	defer cancel()
	return sub.Recv(recvCtx)
}

// RoomFilter returns a filter that keeps only messages for room.
// An empty room keeps everything.
func RoomFilter(room string) func(chat.Message) bool {
	if room == "" {
		return nil
	}
	return func(msg chat.Message) bool {
		return msg.Room == room
	}
}
