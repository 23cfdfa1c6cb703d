// Package history persists gate summaries of past audit runs for operator
// inspection. Stored runs are never read back into classification; the gate
// decision is always recomputed from scratch.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/crategate/crategate/report"
	"github.com/crategate/crategate/types"
)

var bucketRuns = []byte("runs")

// Run is one recorded audit outcome.
type Run struct {
	Sequence     int64             `json:"sequence"`
	RecordedAt   time.Time         `json:"recorded_at"`
	GeneratedAt  string            `json:"generated_at"`
	PolicyPath   string            `json:"policy_path"`
	Gate         types.GateSummary `json:"gate"`
	FindingCount int               `json:"finding_count"`
	Profiles     []string          `json:"profiles"`
}

// Less orders runs by sequence for the in-memory index.
func (r *Run) Less(than *Run) bool {
	return r.Sequence < than.Sequence
}

// Store is an append-only run log on bbolt with an in-memory btree index for
// ordered reads.
type Store struct {
	mu    sync.RWMutex
	db    *bbolt.DB
	index *btree.BTreeG[*Run]
	seq   int64
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{
		db:    db,
		index: btree.NewG[*Run](32, (*Run).Less),
	}

	if err := s.loadIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadIndex() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketRuns)
		if err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %d: %w", seqFromKey(k), err)
			}
			s.index.ReplaceOrInsert(&run)
			if run.Sequence > s.seq {
				s.seq = run.Sequence
			}
			return nil
		})
	})
}

// Record appends one completed audit to the history.
func (s *Store) Record(r report.Report) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make([]string, 0, len(r.Profiles))
	for _, stats := range r.Profiles {
		profiles = append(profiles, stats.ProfileID)
	}

	run := Run{
		Sequence:     s.seq + 1,
		RecordedAt:   time.Now().UTC(),
		GeneratedAt:  r.GeneratedAt,
		PolicyPath:   r.PolicyPath,
		Gate:         r.Gate,
		FindingCount: r.FindingCount,
		Profiles:     profiles,
	}

	data, err := json.Marshal(run)
	if err != nil {
		return Run{}, fmt.Errorf("encode run: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Put(keyFromSeq(run.Sequence), data)
	})
	if err != nil {
		return Run{}, fmt.Errorf("store run: %w", err)
	}

	s.seq = run.Sequence
	s.index.ReplaceOrInsert(&run)
	return run, nil
}

// List returns up to limit runs, most recent first. A non-positive limit
// returns everything.
func (s *Store) List(limit int) []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	s.index.Descend(func(run *Run) bool {
		runs = append(runs, *run)
		return limit <= 0 || len(runs) < limit
	})
	return runs
}

// Last returns the most recent run, if any.
func (s *Store) Last() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		last  Run
		found bool
	)
	s.index.Descend(func(run *Run) bool {
		last = *run
		found = true
		return false
	})
	return last, found
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func keyFromSeq(seq int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seq))
	return key
}

func seqFromKey(key []byte) int64 {
	if len(key) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key))
}
