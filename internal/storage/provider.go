package storage

import (
	"context"
	"sync"
)

// InitFunc runs once against a freshly constructed engine, before any other
// caller sees it. Seeding is wired in here.
type InitFunc func(ctx context.Context, eng Engine) error

// Provider owns the process-wide engine. It is constructed once and passed to
// consumers; Get builds the engine on first use and reuses it afterwards.
type Provider struct {
	opts Options
	init InitFunc

	mu  sync.Mutex
	eng Engine
}

// NewProvider creates a provider. init may be nil.
func NewProvider(opts Options, init InitFunc) *Provider {
	return &Provider{opts: opts, init: init}
}

// Get returns the engine, constructing it on first use. Only the call that
// constructs the engine runs init, so concurrent first calls seed once.
func (p *Provider) Get(ctx context.Context) (Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng != nil {
		return p.eng, nil
	}
	eng, err := Open(ctx, p.opts)
	if err != nil {
		return nil, err
	}
	if p.init != nil {
		if err := p.init(ctx, eng); err != nil {
			eng.Close()
			return nil, err
		}
	}
	p.eng = eng
	return eng, nil
}

// Close closes the engine and forgets it, so the next Get builds a fresh
// one. Closing an unopened provider is a no-op.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.eng == nil {
		return nil
	}
	err := p.eng.Close()
	p.eng = nil
	return err
}
