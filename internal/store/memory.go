package store

import (
	"context"
	"sync"
)

// Memory is an in-process implementation of both ports. It backs unit tests
// and single-instance development runs where no redis is available; it is not
// shared across processes.
type Memory struct {
	mu       sync.RWMutex
	values   map[string]string
	sets     map[string]map[string]bool
	counters map[string]int64
	lists    map[string][]string
	subs     map[string]map[*memorySubscription]bool
}

func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string]string),
		sets:     make(map[string]map[string]bool),
		counters: make(map[string]int64),
		lists:    make(map[string][]string),
		subs:     make(map[string]map[*memorySubscription]bool),
	}
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
		delete(m.counters, key)
		delete(m.lists, key)
	}
	return nil
}

func (m *Memory) SetAdd(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]bool)
	}
	m.sets[key][member] = true
	return nil
}

func (m *Memory) SetRemove(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[key], member)
	return nil
}

func (m *Memory) SetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *Memory) Decr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]--
	return m.counters[key], nil
}

func (m *Memory) ListPushTrim(ctx context.Context, key, value string, capacity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]string{value}, m.lists[key]...)
	if int64(len(list)) > capacity {
		list = list[:capacity]
	}
	m.lists[key] = list
	return nil
}

func (m *Memory) ListRange(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]string, len(m.lists[key]))
	copy(list, m.lists[key])
	return list, nil
}

func (m *Memory) Publish(ctx context.Context, channel, payload string) error {
	m.mu.RLock()
	subs := make([]*memorySubscription, 0, len(m.subs[channel]))
	for sub := range m.subs[channel] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(payload)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		store:    m,
		channel:  channel,
		messages: make(chan string, 64),
	}
	m.mu.Lock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySubscription]bool)
	}
	m.subs[channel][sub] = true
	m.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub, nil
}

type memorySubscription struct {
	store    *Memory
	channel  string
	messages chan string
	once     sync.Once
}

func (s *memorySubscription) deliver(payload string) {
	defer func() {
		// Send on a channel closed by a concurrent Close; the message is
		// dropped, which matches fire-and-forget semantics.
		recover()
	}()
	select {
	case s.messages <- payload:
	default:
	}
}

func (s *memorySubscription) Messages() <-chan string {
	return s.messages
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs[s.channel], s)
		s.store.mu.Unlock()
		close(s.messages)
	})
	return nil
}
