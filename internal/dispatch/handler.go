package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/EznRB/utmify-hooks/internal/event"
	"github.com/EznRB/utmify-hooks/internal/metrics"
)

// requeue delay after a registry or publish failure on the events topic.
const dispatchRequeueDelay = 5 * time.Second

// EventHandler consumes the events topic. Each message is one domain event
// produced by the main application; the handler runs Dispatch and decides
// the message fate itself: a malformed or invalid event is dropped as
// poison, a registry or publish failure holds the message for redelivery so
// no event is lost before its deliveries reach the queue.
func (d *Dispatcher) EventHandler() nsq.Handler {
	return nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()

		var ev event.Event
		if err := json.Unmarshal(m.Body, &ev); err != nil {
			d.logger.Plain().WithError(err).Error("bad event payload")
			metrics.RecordDiscard("bad_payload")
			m.Finish()
			return nil
		}

		_, err := d.Dispatch(context.Background(), ev)
		if errors.Is(err, ErrInvalidEvent) {
			d.logger.Plain().WithError(err).Error("invalid event, dropping")
			metrics.RecordDiscard("invalid_event")
			m.Finish()
			return nil
		}
		if err != nil {
			d.logger.Plain().WithError(err).Error("dispatch event")
			m.Requeue(dispatchRequeueDelay)
			return nil
		}
		m.Finish()
		return nil
	})
}
