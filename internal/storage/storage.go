package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voipcheck/internal/models"
)

// HistoryStorage keeps past run reports in a JSON file.
type HistoryStorage struct {
	mu      sync.RWMutex
	path    string
	limit   int
	history []models.RunReport
}

// NewHistoryStorage creates a storage instance and loads existing history if
// present. A positive limit caps how many runs are kept on disk.
func NewHistoryStorage(path string, limit int) (*HistoryStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	s := &HistoryStorage{path: path, limit: limit}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds a run report and persists the history.
func (s *HistoryStorage) Append(run models.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, run)
	if s.limit > 0 && len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	return s.persist()
}

// Latest returns the most recent run if one exists.
func (s *HistoryStorage) Latest() (models.RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.RunReport{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the entire history.
func (s *HistoryStorage) History() []models.RunReport {
	return s.HistoryN(0)
}

// HistoryN returns a copy of the last n runs; n <= 0 returns everything.
func (s *HistoryStorage) HistoryN(n int) []models.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	copied := make([]models.RunReport, len(s.history)-start)
	copy(copied, s.history[start:])
	return copied
}

func (s *HistoryStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.RunReport{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	if len(data) == 0 {
		s.history = []models.RunReport{}
		return nil
	}

	var entries []models.RunReport
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history: %w", err)
	}

	s.history = entries
	return nil
}

func (s *HistoryStorage) persist() error {
	bytes, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
