package service

import (
	"context"
	"errors"

	"github.com/shenikar/resq_dispatch/internal/models"
)

// Publishers объединяет несколько получателей событий в одного.
// Событие доставляется всем, ошибки собираются вместе.
func Publishers(sinks ...EventPublisher) EventPublisher {
	return multiPublisher(sinks)
}

type multiPublisher []EventPublisher

func (m multiPublisher) Publish(ctx context.Context, event models.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
