package status

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	base := t.TempDir()
	return NewStore(base), base
}

func mkWorkspace(t *testing.T, base, id string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(base, id), 0o755); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}
}

func TestReadUnknownWorkspace(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	if _, err := s.Read("missing_20250101_000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReadProcessingBeforeMarker(t *testing.T) {
	t.Parallel()

	s, base := newTestStore(t)
	mkWorkspace(t, base, "ws_20250101_000000")

	report, err := s.Read("ws_20250101_000000")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !report.Processing || report.Marker != "" || report.Result != nil {
		t.Fatalf("report = %+v, want processing", report)
	}
}

func TestPersistDoneAndReadBack(t *testing.T) {
	t.Parallel()

	s, base := newTestStore(t)
	mkWorkspace(t, base, "ws_20250101_000000")

	result := []byte(`{"workspace":"ws_20250101_000000","language":"py"}`)
	if err := s.Persist("ws_20250101_000000", MarkerDone, result); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	report, err := s.Read("ws_20250101_000000")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if report.Processing || report.Marker != MarkerDone {
		t.Fatalf("report = %+v, want done", report)
	}
	if string(report.Result) != string(result) {
		t.Fatalf("result = %s", report.Result)
	}
}

func TestReadVerbatimMarker(t *testing.T) {
	t.Parallel()

	s, base := newTestStore(t)
	mkWorkspace(t, base, "ws_20250101_000000")

	if err := s.Persist("ws_20250101_000000", MarkerError, nil); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	report, err := s.Read("ws_20250101_000000")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if report.Processing || report.Marker != MarkerError || report.Result != nil {
		t.Fatalf("report = %+v, want bare error marker", report)
	}
}

func TestPersistRejectsUnsafeID(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	for _, id := range []string{"", "../etc", "a/b", "a b"} {
		if err := s.Persist(id, MarkerDone, nil); err == nil {
			t.Errorf("Persist(%q) should fail", id)
		}
		if _, err := s.Read(id); err == nil {
			t.Errorf("Read(%q) should fail", id)
		}
	}
}

func TestDoneWithMissingResultIsAnError(t *testing.T) {
	t.Parallel()

	s, base := newTestStore(t)
	mkWorkspace(t, base, "ws_20250101_000000")

	if err := os.WriteFile(filepath.Join(base, "ws_20250101_000000", "status.txt"), []byte("done"), 0o644); err != nil {
		t.Fatalf("write status: %v", err)
	}
	if _, err := s.Read("ws_20250101_000000"); err == nil {
		t.Fatal("Read should fail when the result document is missing")
	}
}
