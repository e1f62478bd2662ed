package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ridecredit/backend/internal/events"
	"github.com/sirupsen/logrus"
)

// Sink receives events after the unit of work that produced them committed.
type Sink interface {
	Name() string
	Handle(ctx context.Context, evt events.Event) error
}

// Notifier fans events out to sinks in the background. Each delivery gets a
// context bounded by timeout; a failing or panicking sink is only logged.
type Notifier struct {
	sinks   []Sink
	timeout time.Duration
	log     *logrus.Entry
	wg      sync.WaitGroup
}

func NewNotifier(logger *logrus.Logger, timeout time.Duration, sinks ...Sink) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		sinks:   sinks,
		timeout: timeout,
		log:     logger.WithField("component", "notifier"),
	}
}

// Notify never blocks on a sink.
func (n *Notifier) Notify(evt events.Event) {
	if n == nil {
		return
	}
	for _, sink := range n.sinks {
		n.wg.Add(1)
		go n.deliver(sink, evt)
	}
}

func (n *Notifier) deliver(sink Sink, evt events.Event) {
	defer n.wg.Done()

	entry := n.log.WithFields(logrus.Fields{
		"sink":     sink.Name(),
		"event":    evt.Type,
		"event_id": evt.ID,
	})

	if err := bestEffort(n.timeout, func(ctx context.Context) error {
		return sink.Handle(ctx, evt)
	}); err != nil {
		entry.WithError(err).Warn("Notification failed")
	}
}

// Wait blocks until every in-flight notification has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// bestEffort runs fn with a fresh deadline and turns a panic into an error.
func bestEffort(timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}
