package kv

import (
	"context"
	"sync"
)

// Opener connects to a backend.
type Opener func(ctx context.Context) (Store, error)

// Lazy opens its backend on first use and keeps it until Close. A failed open is retried
// by the next call.
type Lazy struct {
	open Opener

	mu     sync.Mutex
	store  Store
	closed bool
}

func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

func (l *Lazy) backend(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if l.store == nil {
		store, err := l.open(ctx)
		if err != nil {
			return nil, err
		}
		l.store = store
	}
	return l.store, nil
}

func (l *Lazy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	store, err := l.backend(ctx)
	if err != nil {
		return nil, false, err
	}
	return store.Get(ctx, key)
}

func (l *Lazy) Put(ctx context.Context, key string, value []byte) error {
	store, err := l.backend(ctx)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, value)
}

func (l *Lazy) Delete(ctx context.Context, key string) error {
	store, err := l.backend(ctx)
	if err != nil {
		return err
	}
	return store.Delete(ctx, key)
}

func (l *Lazy) Scan(ctx context.Context, prefix string, fn func(Entry) error) error {
	store, err := l.backend(ctx)
	if err != nil {
		return err
	}
	return store.Scan(ctx, prefix, fn)
}

// Opened reports whether the backend has been connected.
func (l *Lazy) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store != nil
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
