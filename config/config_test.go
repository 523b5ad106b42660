package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

func TestLoadSourcesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `
sources:
  ryanair:
    enabled: false
    max_daily: 5
  booking:
    enabled: true
    max_daily: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	sources, err := loadSources(path)
	if err != nil {
		t.Fatalf("loadSources: %v", err)
	}

	if sources[models.SourceRyanair].Enabled {
		t.Error("ryanair must be disabled")
	}
	if sc := sources[models.SourceBooking]; !sc.Enabled || sc.MaxDaily != 10 {
		t.Errorf("booking: got %+v, want enabled with max_daily 10", sc)
	}
}

func TestLoadSourcesUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  expedia:\n    enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadSources(path); err == nil {
		t.Error("unknown source must be rejected")
	}
}

func TestLoadSourcesMissingFileUsesDefaults(t *testing.T) {
	sources, err := loadSources(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("loadSources: %v", err)
	}
	if len(sources) != 3 {
		t.Errorf("got %d default sources, want 3", len(sources))
	}
}

func TestEnabledStableOrder(t *testing.T) {
	cfg := &Config{Sources: map[models.Source]SourceConfig{
		models.SourceAirbnb:  {Enabled: true},
		models.SourceRyanair: {Enabled: true},
		models.SourceBooking: {Enabled: false},
	}}

	got := cfg.Enabled()
	want := []models.Source{models.SourceRyanair, models.SourceAirbnb}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d]: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db.local",
		PostgresPort:     "5433",
		PostgresUser:     "scout",
		PostgresPassword: "secret",
		PostgresDB:       "travel_db",
		PostgresSSLMode:  "disable",
	}
	want := "host=db.local port=5433 user=scout password=secret dbname=travel_db sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
