package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/domain"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// Store is the durable cache shared by the whole pipeline: per-player
// match histories, finalized match records and lifetime stats. It is
// mutated by the single pipeline goroutine only, so there is no lock;
// durability comes from explicit Flush calls after every network hit.
type Store struct {
	path   string
	logger zerolog.Logger
	rec    record
}

type record struct {
	Histories map[string][]domain.HistoryEntry `json:"histories"`
	Matches   map[string]domain.MatchRecord    `json:"matches"`
	Lifetime  map[string]domain.LifetimeStats  `json:"lifetime"`
}

func newRecord() record {
	return record{
		Histories: make(map[string][]domain.HistoryEntry),
		Matches:   make(map[string]domain.MatchRecord),
		Lifetime:  make(map[string]domain.LifetimeStats),
	}
}

func NewStore(cfg *config.Config, logger zerolog.Logger) *Store {
	return &Store{
		path:   cfg.CachePath,
		logger: logger,
		rec:    newRecord(),
	}
}

// Load reads the snapshot from disk. A missing file is a normal first
// run and leaves the store empty.
func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info().Str("path", s.path).Msg("no cache snapshot, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read cache snapshot %s: %w", s.path, err)
	}
	defer gz.Close()

	rec := newRecord()
	if err := json.NewDecoder(gz).Decode(&rec); err != nil {
		return fmt.Errorf("failed to decode cache snapshot %s: %w", s.path, err)
	}
	s.rec = rec

	s.logger.Info().
		Str("path", s.path).
		Int("matches", len(rec.Matches)).
		Int("histories", len(rec.Histories)).
		Msg("cache snapshot loaded")
	return nil
}

// Flush serializes the whole store to disk. It writes next to the
// target and renames over it, so a crash mid-write leaves the previous
// snapshot intact. Safe to call arbitrarily often.
func (s *Store) Flush() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(s.rec); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to finish cache snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache snapshot: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("matches", len(s.rec.Matches)).Msg("cache flushed")
	return nil
}

func (s *Store) Match(matchID string) (domain.MatchRecord, bool) {
	rec, ok := s.rec.Matches[matchID]
	return rec, ok
}

// PutMatch stores a finalized record. Match results never change after
// the fact, so entries are permanent and never re-validated.
func (s *Store) PutMatch(rec domain.MatchRecord) {
	s.rec.Matches[rec.MatchID] = rec
}

func (s *Store) History(player domain.PlayerIdentity) ([]domain.HistoryEntry, bool) {
	entries, ok := s.rec.Histories[player.Key()]
	return entries, ok
}

// PutHistory replaces the player's cached history wholesale; the merged
// list is the new source of truth, never appended to.
func (s *Store) PutHistory(player domain.PlayerIdentity, entries []domain.HistoryEntry) {
	cp := make([]domain.HistoryEntry, len(entries))
	copy(cp, entries)
	s.rec.Histories[player.Key()] = cp
}

func (s *Store) Lifetime(player domain.PlayerIdentity) (domain.LifetimeStats, bool) {
	stats, ok := s.rec.Lifetime[player.Key()]
	return stats, ok
}

func (s *Store) PutLifetime(player domain.PlayerIdentity, stats domain.LifetimeStats) {
	s.rec.Lifetime[player.Key()] = stats
}
