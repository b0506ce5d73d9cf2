// Package papers reads the per-day JSON paper files. Each file is named
// YYYY-MM-DD.json and holds an array of paper objects. The store never
// writes to the data directory.
package papers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/types"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrImageNotFound is returned for image requests that do not resolve to a file
var ErrImageNotFound = errors.New("image not found")

// SharedCache is a second cache level shared between processes. The tag
// pool is keyed by a signature of every day file and its version.
type SharedCache interface {
	GetDay(ctx context.Context, date string, version int64) ([]models.Paper, bool, error)
	SetDay(ctx context.Context, date string, version int64, papers []models.Paper) error
	GetTagPool(ctx context.Context, signature string) ([]string, bool, error)
	SetTagPool(ctx context.Context, signature string, tags []string) error
}

// DatedPaper is a paper together with the day file it came from
type DatedPaper struct {
	Date  string
	Paper models.Paper
}

// Store reads day files from a data directory
type Store struct {
	dir    string
	lru    *lruCache
	shared SharedCache
	loads  singleflight.Group

	tagsMu  sync.Mutex
	tagsSig string
	tags    []string
}

// NewStore resolves and creates the data directory. shared may be nil.
func NewStore(cfg *config.PapersConfig, shared SharedCache) (*Store, error) {
	dir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	return &Store{
		dir:    dir,
		lru:    newLRUCache(cfg.CacheSize),
		shared: shared,
	}, nil
}

// Dir returns the absolute data directory
func (s *Store) Dir() string {
	return s.dir
}

// ValidDate reports whether s is a canonical YYYY-MM-DD date
func ValidDate(s string) bool {
	t, err := time.Parse(types.DateLayout, s)
	return err == nil && t.Format(types.DateLayout) == s
}

// ListDates returns the dates that have a data file, oldest first.
// Files whose name is not a date are ignored.
func (s *Store) ListDates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	dates := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if stem := strings.TrimSuffix(name, ".json"); ValidDate(stem) {
			dates = append(dates, stem)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// LatestDate returns the newest date with a data file
func (s *Store) LatestDate() (string, bool) {
	dates, err := s.ListDates()
	if err != nil || len(dates) == 0 {
		return "", false
	}
	return dates[len(dates)-1], true
}

// LoadDate returns the normalized papers of one day. A missing, unreadable
// or malformed file yields an empty slice. The returned slice is a copy;
// the papers inside it must be treated as read-only.
func (s *Store) LoadDate(ctx context.Context, date string) []models.Paper {
	if !ValidDate(date) {
		return []models.Paper{}
	}
	file := filepath.Join(s.dir, date+".json")
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return []models.Paper{}
	}
	version := info.ModTime().UnixNano()

	if papers, ok := s.lru.get(date, version); ok {
		return clonePapers(papers)
	}

	key := date + "@" + strconv.FormatInt(version, 10)
	v, _, _ := s.loads.Do(key, func() (interface{}, error) {
		return s.load(ctx, date, file, version), nil
	})
	return clonePapers(v.([]models.Paper))
}

func (s *Store) load(ctx context.Context, date, file string, version int64) []models.Paper {
	logger := logging.FromContext(ctx).WithField("date", date)

	if s.shared != nil {
		papers, ok, err := s.shared.GetDay(ctx, date, version)
		if err != nil {
			logger.WithError(err).Warn("Shared paper cache read failed")
		} else if ok {
			s.lru.put(date, version, papers)
			return papers
		}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		logger.WithError(err).Warn("Failed to read paper file")
		return []models.Paper{}
	}
	papers, err := parseDay(data)
	if err != nil {
		logger.WithError(err).Warn("Malformed paper file, treating as empty")
		papers = []models.Paper{}
	}

	s.lru.put(date, version, papers)
	if s.shared != nil {
		if err := s.shared.SetDay(ctx, date, version, papers); err != nil {
			logger.WithError(err).Warn("Shared paper cache write failed")
		}
	}
	return papers
}

func clonePapers(in []models.Paper) []models.Paper {
	out := make([]models.Paper, len(in))
	copy(out, in)
	return out
}

// FindByID searches the day files, newest first, for a paper id
func (s *Store) FindByID(ctx context.Context, id string) (*models.Paper, string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", false
	}
	dates, err := s.ListDates()
	if err != nil {
		return nil, "", false
	}
	for i := len(dates) - 1; i >= 0; i-- {
		for _, p := range s.LoadDate(ctx, dates[i]) {
			if p.ID == id {
				found := p
				return &found, dates[i], true
			}
		}
	}
	return nil, "", false
}

// All returns every paper of every day, oldest day first
func (s *Store) All(ctx context.Context) ([]DatedPaper, error) {
	dates, err := s.ListDates()
	if err != nil {
		return nil, err
	}

	days := make([][]models.Paper, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, date := range dates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			days[i] = s.LoadDate(gctx, date)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []DatedPaper
	for i, papers := range days {
		for _, p := range papers {
			all = append(all, DatedPaper{Date: dates[i], Paper: p})
		}
	}
	return all, nil
}

// TagPool returns the sorted set of tags used by any paper. The pool is
// recomputed only when a day file is added, removed or rewritten.
func (s *Store) TagPool(ctx context.Context) []string {
	dates, sig, err := s.signature()
	if err != nil {
		return []string{}
	}

	s.tagsMu.Lock()
	if s.tags != nil && s.tagsSig == sig {
		pool := append([]string{}, s.tags...)
		s.tagsMu.Unlock()
		return pool
	}
	s.tagsMu.Unlock()

	logger := logging.FromContext(ctx)
	if s.shared != nil {
		pool, ok, err := s.shared.GetTagPool(ctx, sig)
		if err != nil {
			logger.WithError(err).Warn("Shared tag pool read failed")
		} else if ok {
			s.rememberTags(sig, pool)
			return append([]string{}, pool...)
		}
	}

	seen := make(map[string]struct{})
	for _, date := range dates {
		for _, p := range s.LoadDate(ctx, date) {
			for _, tag := range p.Tags {
				seen[tag] = struct{}{}
			}
		}
	}
	pool := make([]string, 0, len(seen))
	for tag := range seen {
		pool = append(pool, tag)
	}
	sort.Strings(pool)

	s.rememberTags(sig, pool)
	if s.shared != nil {
		if err := s.shared.SetTagPool(ctx, sig, pool); err != nil {
			logger.WithError(err).Warn("Shared tag pool write failed")
		}
	}
	return append([]string{}, pool...)
}

func (s *Store) rememberTags(sig string, pool []string) {
	s.tagsMu.Lock()
	defer s.tagsMu.Unlock()
	s.tagsSig = sig
	s.tags = append([]string{}, pool...)
}

// signature hashes every day file name with its modification time
func (s *Store) signature() ([]string, string, error) {
	dates, err := s.ListDates()
	if err != nil {
		return nil, "", err
	}
	h := xxhash.New()
	for _, date := range dates {
		var version int64
		if info, err := os.Stat(filepath.Join(s.dir, date+".json")); err == nil {
			version = info.ModTime().UnixNano()
		}
		_, _ = h.WriteString(date)
		_, _ = h.WriteString(strconv.FormatInt(version, 10))
		_, _ = h.WriteString(";")
	}
	return dates, strconv.FormatUint(h.Sum64(), 16), nil
}
