// Package storage keeps a history of completed runs in a bbolt file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"pageswarm/internal/report"
)

const (
	BucketRuns = "runs"
)

var ErrNotFound = errors.New("run not found")

// RunConfig is the part of the run configuration worth remembering.
type RunConfig struct {
	TargetURL         string        `json:"target_url"`
	Users             int           `json:"users"`
	MaxHops           int           `json:"max_hops"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	SimulateProfiles  bool          `json:"simulate_profiles"`
	Seed              int64         `json:"seed"`
	OutputDir         string        `json:"output_dir"`
}

type HistoryItem struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
	Config    RunConfig      `json:"config"`
	Summary   report.Summary `json:"summary"`
}

type Store struct {
	db *bbolt.DB
}

// DefaultPath is ~/.pageswarm/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pageswarm", "history.db"), nil
}

// Open opens or creates the history file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	// A second process holding the file lock should not hang the run.
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores item, assigning an ID and timestamp when missing. IDs are
// time-ordered UUIDs, so key order is save order.
func (s *Store) Save(item *HistoryItem) error {
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		item.ID = id.String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).Put([]byte(item.ID), data)
	})
}

// List returns every saved run, newest first. Undecodable entries are skipped.
func (s *Store) List() ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err == nil {
				items = append(items, item)
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) Get(id string) (*HistoryItem, error) {
	var item HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
