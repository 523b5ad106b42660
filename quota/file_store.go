package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// FileStore persists per-source counters in a single JSON file so the quota
// survives process restarts. The mutex serializes check-and-increment within
// the process; the file is replaced atomically so a crash mid-write never
// leaves a corrupt counter.
type FileStore struct {
	path     string
	maxDaily map[models.Source]int
	logger   *utils.Logger

	mu  sync.Mutex
	now func() time.Time // overridable in tests
}

// NewFileStore creates a file-backed store at path with the given per-source
// daily maximums.
func NewFileStore(path string, maxDaily map[models.Source]int, logger *utils.Logger) *FileStore {
	return &FileStore{
		path:     path,
		maxDaily: maxDaily,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckAndIncrement implements Store. A source with no configured maximum is
// unlimited.
func (fs *FileStore) CheckAndIncrement(source models.Source) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	max, limited := fs.maxDaily[source]
	if !limited || max <= 0 {
		return nil
	}

	states, err := fs.load()
	if err != nil {
		return fmt.Errorf("quota: load state: %w", err)
	}

	now := fs.now()
	state := states[string(source)]
	if state.Date != today(now) {
		state = State{Date: today(now), Count: 0}
	}

	if state.Count >= max {
		fs.logger.Warn("[quota] %s daily limit reached: %d/%d", source, state.Count, max)
		return scraper.NewRateLimitError(source, secondsUntilMidnight(now), "daily", state.Count, max)
	}

	state.Count++
	states[string(source)] = state
	if err := fs.save(states); err != nil {
		return fmt.Errorf("quota: save state: %w", err)
	}

	fs.logger.Debug("[quota] %s: %d/%d searches today", source, state.Count, max)
	return nil
}

func (fs *FileStore) load() (map[string]State, error) {
	states := make(map[string]State)

	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return states, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &states); err != nil {
		// A corrupt file resets all counters rather than blocking scraping.
		fs.logger.Warn("[quota] state file %s unreadable, resetting: %v", fs.path, err)
		return make(map[string]State), nil
	}
	return states, nil
}

func (fs *FileStore) save(states map[string]State) error {
	data, err := json.Marshal(states)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}
