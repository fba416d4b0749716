package queue

import (
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
)

// Producer is the publishing side of the queue. *nsq.Producer satisfies it;
// tests substitute capturing stubs.
type Producer interface {
	Publish(topic string, body []byte) error
	DeferredPublish(topic string, delay time.Duration, body []byte) error
}

var _ Producer = (*nsq.Producer)(nil)

// Registry maps consumed topics to handlers. It is populated once at
// startup so a topic without a handler is caught before any message flows.
type Registry struct {
	handlers map[string]nsq.Handler
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]nsq.Handler)}
}

func (r *Registry) Register(topic string, h nsq.Handler) error {
	if topic == "" {
		return fmt.Errorf("register: empty topic")
	}
	if h == nil {
		return fmt.Errorf("register %q: nil handler", topic)
	}
	if _, dup := r.handlers[topic]; dup {
		return fmt.Errorf("register %q: handler already registered", topic)
	}
	r.handlers[topic] = h
	r.order = append(r.order, topic)
	return nil
}

// Require verifies every listed topic has a handler. Called by main before
// consuming starts.
func (r *Registry) Require(topics ...string) error {
	for _, topic := range topics {
		if _, ok := r.handlers[topic]; !ok {
			return fmt.Errorf("no handler registered for topic %q", topic)
		}
	}
	return nil
}

// Topics returns the registered topics in registration order.
func (r *Registry) Topics() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Handler(topic string) (nsq.Handler, bool) {
	h, ok := r.handlers[topic]
	return h, ok
}

// ConsumerConfig carries the NSQ wiring for StartConsumers.
type ConsumerConfig struct {
	Channel        string
	Concurrency    int
	MaxInFlight    int
	NsqdTCPAddr    string
	LookupHTTPAddr string
}

// Consumers owns one NSQ consumer per registered topic.
type Consumers struct {
	consumers []*nsq.Consumer
}

// StartConsumers builds a consumer per registered topic with the topic's
// handler and connects it. Connecting to nsqd directly first forces channel
// creation instead of waiting for lookupd discovery.
func StartConsumers(r *Registry, cfg ConsumerConfig) (*Consumers, error) {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	cs := &Consumers{}
	for _, topic := range r.Topics() {
		h, _ := r.Handler(topic)

		conf := nsq.NewConfig()
		if cfg.MaxInFlight > 0 {
			conf.MaxInFlight = cfg.MaxInFlight
		}
		consumer, err := nsq.NewConsumer(topic, cfg.Channel, conf)
		if err != nil {
			cs.Stop()
			return nil, fmt.Errorf("nsq consumer %q: %w", topic, err)
		}
		consumer.AddConcurrentHandlers(h, concurrency)

		if err := consumer.ConnectToNSQD(cfg.NsqdTCPAddr); err != nil {
			consumer.Stop()
			cs.Stop()
			return nil, fmt.Errorf("connect to nsqd for %q: %w", topic, err)
		}
		if err := consumer.ConnectToNSQLookupd(cfg.LookupHTTPAddr); err != nil {
			consumer.Stop()
			cs.Stop()
			return nil, fmt.Errorf("connect to lookupd for %q: %w", topic, err)
		}
		cs.consumers = append(cs.consumers, consumer)
	}
	return cs, nil
}

// Stop signals every consumer and waits for in-flight handlers to drain.
func (c *Consumers) Stop() {
	for _, consumer := range c.consumers {
		consumer.Stop()
	}
	for _, consumer := range c.consumers {
		<-consumer.StopChan
	}
}
