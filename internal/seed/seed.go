// Package seed populates static reference data on first engine start.
//
// Each domain (collectible tiers, holders, recipes, achievement definitions,
// forum posts) is seeded only while its table is empty, so running the
// manager again is a no-op. A bad or missing source skips its domain with a
// warning; storage errors abort the run.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roach88/membership/internal/logger"
	"github.com/roach88/membership/internal/storage"
)

// Domain names as they appear in a Report.
const (
	DomainCollectibles = "collectibles"
	DomainHolders      = "collectible_holders"
	DomainRecipes      = "recipes"
	DomainAchievements = "achievements"
	DomainForumPosts   = "forum_posts"
)

// ErrMalformedSource is returned by decoders for sources of the wrong shape.
var ErrMalformedSource = errors.New("malformed seed source")

// DomainReport describes what happened to one domain.
type DomainReport struct {
	Domain   string `json:"domain"`
	Existing int64  `json:"existing"`
	Inserted int64  `json:"inserted"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
}

// Report is the outcome of one Seed run, in domain order.
type Report struct {
	Domains []DomainReport `json:"domains"`
}

// Domain returns the entry for name.
func (r Report) Domain(name string) (DomainReport, bool) {
	for _, d := range r.Domains {
		if d.Domain == name {
			return d, true
		}
	}
	return DomainReport{}, false
}

// Manager seeds an engine from a directory of JSON sources.
type Manager struct {
	dir string
	log *logger.Logger
	now func() time.Time

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the timestamp source for seeded rows.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager reading sources from dir. dir may be empty,
// in which case only domains with embedded defaults are seeded.
func NewManager(dir string, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{dir: dir, log: log.With("component", "seed"), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init runs Seed and discards the report. It satisfies storage.InitFunc.
func (m *Manager) Init(ctx context.Context, eng storage.Engine) error {
	_, err := m.Seed(ctx, eng)
	return err
}

// Seed runs every domain against eng. Concurrent calls are serialised.
func (m *Manager) Seed(ctx context.Context, eng storage.Engine) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report Report
	now := m.now().UnixMilli()
	for _, d := range domains {
		res, err := m.seedDomain(ctx, eng, d, now)
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", d.name, err)
		}
		report.Domains = append(report.Domains, res)
	}
	return report, nil
}

func (m *Manager) seedDomain(ctx context.Context, eng storage.Engine, d domain, now int64) (DomainReport, error) {
	res := DomainReport{Domain: d.name}

	count, err := countRows(ctx, eng, d.name)
	if err != nil {
		return res, err
	}
	if count > 0 {
		res.Existing = count
		res.Skipped = true
		res.Reason = "already seeded"
		return res, nil
	}

	rows, err := m.readSource(d, now)
	if err != nil {
		m.log.Warn("seed source skipped", "domain", d.name, "error", err)
		res.Skipped = true
		res.Reason = err.Error()
		return res, nil
	}

	stmt, err := eng.Prepare(d.insert)
	if err != nil {
		return res, err
	}
	for _, args := range rows {
		r, err := stmt.Run(ctx, args...)
		if err != nil {
			return res, err
		}
		res.Inserted += r.RowsAffected
	}
	m.log.Info("seeded domain", "domain", d.name, "rows", res.Inserted)
	return res, nil
}

// readSource loads and decodes the domain's source, falling back to the
// embedded default when the file is absent.
func (m *Manager) readSource(d domain, now int64) ([][]any, error) {
	data, err := m.load(d)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrMalformedSource, d.file)
	}
	return d.decode(gjson.ParseBytes(data), now)
}

func (m *Manager) load(d domain) ([]byte, error) {
	if m.dir != "" {
		path := filepath.Join(m.dir, d.file)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if d.fallback != nil {
		return d.fallback, nil
	}
	if m.dir == "" {
		return nil, fmt.Errorf("no seed directory configured for %s", d.file)
	}
	return nil, fmt.Errorf("%s not found in %s", d.file, m.dir)
}

func countRows(ctx context.Context, eng storage.Engine, table string) (int64, error) {
	stmt, err := eng.Prepare("SELECT COUNT(*) AS count FROM " + table)
	if err != nil {
		return 0, err
	}
	row, err := stmt.Get(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := row["count"].(int64)
	return n, nil
}
