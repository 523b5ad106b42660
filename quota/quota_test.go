package quota

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger(false)
}

func TestFileStoreCountsUpToLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	fs := NewFileStore(path, map[models.Source]int{models.SourceRyanair: 5}, testLogger())

	for i := 1; i <= 5; i++ {
		if err := fs.CheckAndIncrement(models.SourceRyanair); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}

	err := fs.CheckAndIncrement(models.SourceRyanair)
	var rl *scraper.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("call 6: got %v, want *RateLimitError", err)
	}
	if rl.CurrentCount != 5 || rl.MaxCount != 5 {
		t.Errorf("count: got %d/%d, want 5/5", rl.CurrentCount, rl.MaxCount)
	}
	if rl.LimitType != "daily" {
		t.Errorf("limit type: got %q, want %q", rl.LimitType, "daily")
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > 24*time.Hour {
		t.Errorf("retry after: got %v, want within (0, 24h]", rl.RetryAfter)
	}
}

func TestFileStoreRejectionDoesNotMutate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	fs := NewFileStore(path, map[models.Source]int{models.SourceBooking: 1}, testLogger())

	if err := fs.CheckAndIncrement(models.SourceBooking); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Two rejections in a row must report the same count.
	for i := 0; i < 2; i++ {
		err := fs.CheckAndIncrement(models.SourceBooking)
		var rl *scraper.RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("rejection %d: got %v, want *RateLimitError", i+1, err)
		}
		if rl.CurrentCount != 1 {
			t.Errorf("rejection %d: count mutated to %d", i+1, rl.CurrentCount)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var states map[string]State
	if err := json.Unmarshal(data, &states); err != nil {
		t.Fatalf("unmarshal state file: %v", err)
	}
	if got := states[string(models.SourceBooking)].Count; got != 1 {
		t.Errorf("persisted count: got %d, want 1", got)
	}
}

func TestFileStoreResetsOnNewDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	fs := NewFileStore(path, map[models.Source]int{models.SourceAirbnb: 2}, testLogger())

	day1 := time.Date(2026, 3, 14, 22, 0, 0, 0, time.Local)
	fs.now = func() time.Time { return day1 }

	for i := 0; i < 2; i++ {
		if err := fs.CheckAndIncrement(models.SourceAirbnb); err != nil {
			t.Fatalf("day 1 call %d: %v", i+1, err)
		}
	}
	if err := fs.CheckAndIncrement(models.SourceAirbnb); err == nil {
		t.Fatal("day 1 call 3: expected rate limit")
	}

	fs.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	if err := fs.CheckAndIncrement(models.SourceAirbnb); err != nil {
		t.Errorf("next day call: got %v, want nil", err)
	}
}

func TestFileStoreUnlimitedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	fs := NewFileStore(path, map[models.Source]int{}, testLogger())

	for i := 0; i < 100; i++ {
		if err := fs.CheckAndIncrement(models.SourceRyanair); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
}

func TestFileStoreCorruptFileResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileStore(path, map[models.Source]int{models.SourceRyanair: 5}, testLogger())
	if err := fs.CheckAndIncrement(models.SourceRyanair); err != nil {
		t.Errorf("after corrupt file: got %v, want nil", err)
	}
}

func TestMemoryStoreMatchesFileSemantics(t *testing.T) {
	ms := NewMemoryStore(map[models.Source]int{models.SourceBooking: 3})

	for i := 0; i < 3; i++ {
		if err := ms.CheckAndIncrement(models.SourceBooking); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}

	err := ms.CheckAndIncrement(models.SourceBooking)
	var rl *scraper.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("got %v, want *RateLimitError", err)
	}
	if ms.Count(models.SourceBooking) != 3 {
		t.Errorf("count after rejection: got %d, want 3", ms.Count(models.SourceBooking))
	}
}

func TestSecondsUntilMidnight(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)
	if got := secondsUntilMidnight(now); got != time.Minute {
		t.Errorf("got %v, want %v", got, time.Minute)
	}
}
