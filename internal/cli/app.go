package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/roach88/membership/internal/achievement"
	"github.com/roach88/membership/internal/config"
	"github.com/roach88/membership/internal/entitlement"
	"github.com/roach88/membership/internal/ids"
	"github.com/roach88/membership/internal/logger"
	"github.com/roach88/membership/internal/member"
	"github.com/roach88/membership/internal/seed"
	"github.com/roach88/membership/internal/storage"
)

// app is the per-invocation wiring shared by every command.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	now      func() time.Time
	ids      ids.Generator
	seeds    *seed.Manager
	provider *storage.Provider
}

// newApp loads configuration and builds the storage provider. Storage is
// not opened until engine is called.
func newApp(opts *RootOptions, seedOnOpen bool) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.SeedDir != "" {
		cfg.SeedDir = opts.SeedDir
	}
	if opts.Memory {
		cfg.ForceMemory = true
	}

	a := &app{cfg: cfg, log: opts.logger, now: opts.now, ids: opts.ids}
	if a.log == nil {
		a.log, err = logger.New(cfg.LogMode, opts.Verbose)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
		}
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.ids == nil {
		a.ids = ids.UUIDv7Generator{}
	}

	a.seeds = seed.NewManager(cfg.SeedDir, a.log, seed.WithClock(a.now))
	var initFn storage.InitFunc
	if seedOnOpen {
		initFn = a.seeds.Init
	}
	a.provider = storage.NewProvider(storage.Options{
		Path:        cfg.DBPath,
		ForceMemory: cfg.ForceMemory,
		Logger:      a.log,
	}, initFn)
	return a, nil
}

func (a *app) engine(ctx context.Context) (storage.Engine, error) {
	eng, err := a.provider.Get(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	return eng, nil
}

func (a *app) achievements(ctx context.Context) (*achievement.Engine, error) {
	eng, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}
	e, err := achievement.New(eng, achievement.Options{IDs: a.ids, Now: a.now, Logger: a.log})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to prepare achievement engine", err)
	}
	return e, nil
}

func (a *app) members(ctx context.Context) (*member.Store, error) {
	eng, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}
	s, err := member.New(eng, member.Options{IDs: a.ids, Now: a.now})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to prepare member store", err)
	}
	return s, nil
}

// resolver builds the entitlement resolver from the configured env strings
// and the seed allowlist file, falling back to the embedded list.
func (a *app) resolver() (*entitlement.Resolver, error) {
	list := entitlement.DefaultSeedAllowlist()
	if a.cfg.SeedAllowlist != "" {
		data, err := os.ReadFile(a.cfg.SeedAllowlist)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read seed allowlist", err)
		}
		list, err = entitlement.LoadSeedAllowlist(data)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to parse seed allowlist", err)
		}
	}
	r := entitlement.NewResolver(a.cfg.AllowlistWallets, a.cfg.AllowlistEmails, list)
	wallets, emails := r.Size()
	a.log.Debug("allowlist loaded", "wallets", wallets, "emails", emails)
	return r, nil
}

func (a *app) close() {
	if err := a.provider.Close(); err != nil {
		a.log.Warn("close storage", "error", err)
	}
	a.log.Sync()
}

func formatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
