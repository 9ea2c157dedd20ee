package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/starnet/internal/domain"
)

// SignalService fans lifecycle events out over redis pub/sub.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event domain.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err

	}

	return nil
}

// Realtime forwards events of the families last received on input to
// output until ctx is done or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var current []string

	for {
		select {
		case <-ctx.Done():
			return
		case families, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "unsubscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			current = eventChannels(families)
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "subscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "broken event payload", slog.String("error", err.Error()), slog.String("module", "signal"))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func eventChannels(families []string) []string {
	channels := make([]string, 0, len(families))
	for _, f := range families {
		channels = append(channels, domain.EventChannel(f))
	}
	return channels
}

// LocalSignal is the in-process counterpart of SignalService for nodes
// running without redis.
type LocalSignal struct {
	mu   sync.RWMutex
	subs map[chan domain.Event]map[string]struct{}
}

func NewLocalSignal() *LocalSignal {
	return &LocalSignal{subs: make(map[chan domain.Event]map[string]struct{})}
}

func (s *LocalSignal) Publish(ctx context.Context, channel string, event domain.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch, channels := range s.subs {
		if _, ok := channels[channel]; !ok {
			continue
		}
		select {
		case ch <- event:
		default:
			slog.WarnContext(ctx, "dropping event for slow subscriber", slog.String("channel", channel), slog.String("module", "signal"))
		}
	}
	return nil
}

func (s *LocalSignal) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.Event) {
	ch := make(chan domain.Event, 64)
	s.mu.Lock()
	s.subs[ch] = map[string]struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case families, ok := <-input:
			if !ok {
				return
			}
			channels := map[string]struct{}{}
			for _, c := range eventChannels(families) {
				channels[c] = struct{}{}
			}
			s.mu.Lock()
			s.subs[ch] = channels
			s.mu.Unlock()
		case event := <-ch:
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
