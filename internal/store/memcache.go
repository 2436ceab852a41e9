package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/playok/adminsync/internal/model"
)

// Memcache stores options in memcached. Items never expire, but memcached may
// still evict them under memory pressure; a later load reseeds the default.
type Memcache struct {
	client *memcache.Client
}

// NewMemcache connects to the given servers and pings them.
func NewMemcache(servers ...string) (*Memcache, error) {
	client := memcache.New(servers...)
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("memcache ping: %w", err)
	}
	return &Memcache{client: client}, nil
}

func (m *Memcache) Get(_ context.Context, name string) (string, bool, error) {
	it, err := m.client.Get(name)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(it.Value), true, nil
}

func (m *Memcache) Create(_ context.Context, name, value string) error {
	err := m.client.Add(&memcache.Item{Key: name, Value: []byte(value)})
	if errors.Is(err, memcache.ErrNotStored) {
		return nil
	}
	return err
}

func (m *Memcache) Update(_ context.Context, name, value string) error {
	return m.client.Set(&memcache.Item{Key: name, Value: []byte(value)})
}

// List is not supported: memcached has no key enumeration.
func (m *Memcache) List(context.Context) ([]model.Setting, error) {
	return nil, ErrListUnsupported
}

// Close is a no-op; idle connections are pooled by the client and released
// with the process.
func (m *Memcache) Close() error { return nil }
