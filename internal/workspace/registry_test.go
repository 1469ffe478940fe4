package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testDescriptor(id string) Descriptor {
	return Descriptor{
		ID:       id,
		Language: LangPy,
		Root:     "/tmp/" + id,
		SourceFiles: map[Language][]string{
			LangPy: {"main.py"},
		},
		CreatedAt: time.Now(),
	}
}

func TestRegistryRecordAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Record(testDescriptor("a_20250101_120000")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Record(testDescriptor("b_20250101_120001")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, ok := r.Get("a_20250101_120000")
	if !ok || got.ID != "a_20250101_120000" {
		t.Fatalf("Get returned %#v, %v", got, ok)
	}

	cur, ok := r.Current()
	if !ok || cur.ID != "b_20250101_120001" {
		t.Fatalf("Current returned %#v, %v", cur, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatal("Get should miss for unknown id")
	}
	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}
}

func TestRegistryRejectsInvalidDescriptor(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Record(Descriptor{Language: LangPy}); err == nil {
		t.Fatal("expected error for empty id")
	}
	if err := r.Record(Descriptor{ID: "x", Language: "rust"}); err == nil {
		t.Fatal("expected error for invalid language")
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Record(testDescriptor("a_20250101_120000")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	first, _ := r.Get("a_20250101_120000")
	first.SourceFiles[LangPy][0] = "mutated.py"

	second, _ := r.Get("a_20250101_120000")
	if second.SourceFiles[LangPy][0] != "main.py" {
		t.Fatal("registry leaked a live reference to source files")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		id := testDescriptor("ws")
		id.ID = "ws_" + string(rune('a'+i))
		go func(d Descriptor) {
			defer wg.Done()
			_ = r.Record(d)
		}(id)
		go func() {
			defer wg.Done()
			_, _ = r.Current()
		}()
	}
	wg.Wait()

	if r.Count() != 16 {
		t.Fatalf("Count = %d, want 16", r.Count())
	}
}

func TestWorkingTree(t *testing.T) {
	t.Parallel()

	py := Descriptor{Language: LangPy, WorkDir: "/ws/python_repo"}
	if py.WorkingTree() != "/ws/python_repo" {
		t.Errorf("py working tree = %q", py.WorkingTree())
	}

	cpp := Descriptor{Language: LangCpp, WorkDir: "/ws/cpp_project"}
	if cpp.WorkingTree() != filepath.Join("/ws/cpp_project", CppNestedDir) {
		t.Errorf("cpp working tree = %q", cpp.WorkingTree())
	}
}

func TestJanitorSweep(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	oldWS := filepath.Join(base, "old_20240101_000000")
	newWS := filepath.Join(base, "new_20990101_000000")
	for _, dir := range []string{oldWS, newWS} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldWS, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	j := NewJanitor(base, 24*time.Hour, time.Hour, logger)

	report, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.DeletedDirs != 1 {
		t.Fatalf("DeletedDirs = %d, want 1", report.DeletedDirs)
	}
	if _, err := os.Stat(oldWS); !os.IsNotExist(err) {
		t.Error("stale workspace should be deleted")
	}
	if _, err := os.Stat(newWS); err != nil {
		t.Error("fresh workspace should survive")
	}
}

func TestJanitorSweepMissingBaseDir(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	j := NewJanitor(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Hour, logger)
	report, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.DeletedDirs != 0 {
		t.Fatalf("DeletedDirs = %d, want 0", report.DeletedDirs)
	}
}
