package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"stockwidget/internal/model"
)

// Subscriber manages change-notification subscriptions on one Redis
// PubSub connection and forwards decoded changes.
type Subscriber struct {
	ps  *goredis.PubSub
	log *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// NewSubscriber opens a PubSub connection with no channels yet.
func NewSubscriber(ctx context.Context, rdb *goredis.Client) *Subscriber {
	return &Subscriber{
		ps:     rdb.Subscribe(ctx),
		log:    slog.Default().With(slog.String("component", "subscriber")),
		active: make(map[string]bool),
	}
}

// Subscribe starts delivering changes of source. Subscribing twice is a no-op.
func (s *Subscriber) Subscribe(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[source] {
		return nil
	}
	if err := s.ps.Subscribe(ctx, ChangeChannel(source)); err != nil {
		return fmt.Errorf("subscribe %s: %w", source, err)
	}
	s.active[source] = true
	s.log.Info("subscribed", "source", source)
	return nil
}

// Unsubscribe stops delivering changes of source. Unknown sources are a no-op.
func (s *Subscriber) Unsubscribe(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active[source] {
		return nil
	}
	if err := s.ps.Unsubscribe(ctx, ChangeChannel(source)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", source, err)
	}
	delete(s.active, source)
	s.log.Info("unsubscribed", "source", source)
	return nil
}

// Sources returns the currently subscribed sources.
func (s *Subscriber) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for src := range s.active {
		out = append(out, src)
	}
	return out
}

// Run decodes messages and sends them to out. Blocks until ctx is
// cancelled or the connection is closed.
func (s *Subscriber) Run(ctx context.Context, out chan<- model.Change) {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c, err := decodeChange(msg.Channel, msg.Payload)
			if err != nil {
				s.log.Warn("dropping malformed change", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the PubSub connection.
func (s *Subscriber) Close() error {
	return s.ps.Close()
}

func decodeChange(channel, payload string) (model.Change, error) {
	var c model.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return model.Change{}, err
	}
	if c.Source == "" {
		c.Source = strings.TrimPrefix(channel, changeChannelPrefix)
	}
	return c, nil
}

// Publisher emits change notifications, the host-platform side of Subscriber.
type Publisher struct {
	rdb *goredis.Client
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends c on the change channel of c.Source.
func (p *Publisher) Publish(ctx context.Context, c model.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := p.rdb.Publish(ctx, ChangeChannel(c.Source), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", c.Source, err)
	}
	return nil
}
