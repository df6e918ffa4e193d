package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"site-audit/pkg/log"
	"site-audit/pkg/models"
	"site-audit/pkg/utils"
)

const (
	reportKeyPrefix = "report:" // full report JSON per run ID
	metaKeyPrefix   = "meta:"   // compact RunMeta per run ID, for cheap listing
	runsDBDir       = "runs_db"
)

const maxConflictRetries = 10

// RunMeta is the lightweight listing record kept alongside each report
type RunMeta struct {
	RunID        string    `json:"run_id"`
	StartURL     string    `json:"start_url"`
	FinishedAt   time.Time `json:"finished_at"`
	Score        int       `json:"score"`
	PagesCrawled int       `json:"pages_crawled"`
	IssueCount   int       `json:"issue_count"`
}

// ReportStore is the persistence contract for completed runs
type ReportStore interface {
	SaveReport(report *models.Report) error
	GetReport(runID string) (*models.Report, error)
	ListRuns() ([]RunMeta, error)
	LatestRunID(startURL string) (string, error)
	Close() error
}

// RunStore persists completed reports in a BadgerDB instance under stateDir
type RunStore struct {
	db  *badger.DB
	log *logrus.Entry
}

var _ ReportStore = (*RunStore)(nil)

// NewRunStore opens (or creates) the run database for one site
func NewRunStore(stateDir, siteDomain string, logger *logrus.Entry) (*RunStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteDomain)+"_"+runsDBDir)
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	logger.Infof("Opening run database at: %s", dbPath)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}
	return &RunStore{db: db, log: logger}, nil
}

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *RunStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// SaveReport persists a completed report and its listing record
func (s *RunStore) SaveReport(report *models.Report) error {
	if s.db == nil {
		return errors.New("run DB not initialized")
	}

	reportBytes, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: marshal report '%s': %w", utils.ErrParsing, report.RunID, err)
	}
	meta := RunMeta{
		RunID:        report.RunID,
		StartURL:     report.Inputs.StartURL,
		FinishedAt:   report.FinishedAt,
		Score:        report.Summary.Score,
		PagesCrawled: report.Summary.PagesCrawled,
		IssueCount:   len(report.Issues),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal run meta '%s': %w", utils.ErrParsing, report.RunID, err)
	}

	err = s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry([]byte(reportKeyPrefix+report.RunID), reportBytes)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(metaKeyPrefix+report.RunID), metaBytes))
	})
	if err != nil {
		s.log.WithField("run_id", report.RunID).Errorf("DB Update error in SaveReport: %v", err)
		return fmt.Errorf("%w: saving report '%s': %w", utils.ErrDatabase, report.RunID, err)
	}

	s.log.WithFields(logrus.Fields{"run_id": report.RunID, "bytes": len(reportBytes)}).Info("Report persisted")
	return nil
}

// GetReport loads the full report for a run ID. Returns utils.ErrDatabase
// wrapping badger.ErrKeyNotFound when the run does not exist.
func (s *RunStore) GetReport(runID string) (*models.Report, error) {
	var report models.Report
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportKeyPrefix + runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: run '%s' not found: %w", utils.ErrDatabase, runID, err)
		}
		return nil, fmt.Errorf("%w: loading report '%s': %w", utils.ErrDatabase, runID, err)
	}
	return &report, nil
}

// ListRuns returns all run records, most recent first
func (s *RunStore) ListRuns() ([]RunMeta, error) {
	var runs []RunMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(metaKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta RunMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					s.log.Warnf("Skipping undecodable run meta for key '%s': %v", string(it.Item().Key()), err)
					return nil
				}
				runs = append(runs, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %w", utils.ErrDatabase, err)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].FinishedAt.Equal(runs[j].FinishedAt) {
			return runs[i].FinishedAt.After(runs[j].FinishedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

// LatestRunID returns the most recent run for a start URL, or "" when none exists
func (s *RunStore) LatestRunID(startURL string) (string, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return "", err
	}
	for _, run := range runs {
		if run.StartURL == startURL {
			return run.RunID, nil
		}
	}
	return "", nil
}

// Close cleanly closes the database
func (s *RunStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing run DB: %v", err)
			return err
		}
		s.log.Info("Run DB closed.")
	}
	return nil
}
