package events

import (
	"context"
	"errors"
)

// MultiPublisher fans an event out to every wrapped publisher. All
// publishers are attempted; their errors are joined.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a MultiPublisher, skipping nil entries.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish implements Publisher.
func (m *MultiPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
