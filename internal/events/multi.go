package events

import (
	"context"
	"errors"
)

// Multi publishes every event to each of its publishers. A failure of one
// publisher does not stop delivery to the others; the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to Publisher. Close is a no-op.
type PublisherFunc func(ctx context.Context, topic string, event any) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, event any) error {
	return f(ctx, topic, event)
}

func (f PublisherFunc) Close() error { return nil }
