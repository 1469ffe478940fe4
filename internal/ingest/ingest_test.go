package ingest

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func newTestIngestor(t *testing.T) *Ingestor {
	t.Helper()
	in, err := New(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return in
}

func TestIngestPythonProject(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	archive := buildZip(t, map[string]string{
		"main.py":        "print('hi')\n",
		"pkg/helpers.py": "x = 1\n",
		"README.md":      "docs\n",
	})

	desc, err := in.Ingest(archive, "demo project.zip", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if desc.Language != workspace.LangPy {
		t.Fatalf("language = %q, want py", desc.Language)
	}
	if got, want := desc.Sources(), []string{"main.py", "pkg/helpers.py"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("sources = %v, want %v", got, want)
	}
	if desc.ArchiveDigest == "" {
		t.Error("archive digest should be set")
	}

	for _, p := range []string{
		filepath.Join(desc.SnapshotDir, "main.py"),
		filepath.Join(desc.SnapshotDir, "pkg", "helpers.py"),
		filepath.Join(desc.WorkDir, "main.py"),
		filepath.Join(desc.WorkDir, "README.md"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %q to exist: %v", p, err)
		}
	}
	if filepath.Base(desc.WorkDir) != workspace.PyWorkDirName {
		t.Errorf("work dir = %q", desc.WorkDir)
	}
}

func TestIngestCppProjectNestsWorkingCopy(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	archive := buildZip(t, map[string]string{"solver.cpp": "int main() {}\n"})

	desc, err := in.Ingest(archive, "puzzle.zip", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if desc.Language != workspace.LangCpp {
		t.Fatalf("language = %q, want cpp", desc.Language)
	}

	nested := filepath.Join(desc.WorkDir, workspace.CppNestedDir, "solver.cpp")
	if _, err := os.Stat(nested); err != nil {
		t.Fatalf("expected nested working copy at %q: %v", nested, err)
	}
	if desc.WorkingTree() != filepath.Join(desc.WorkDir, workspace.CppNestedDir) {
		t.Errorf("working tree = %q", desc.WorkingTree())
	}
}

func TestIngestRejectsInvalidArchive(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	_, err := in.Ingest([]byte("definitely not a zip"), "bad.zip", "")
	if !errors.Is(err, ErrInvalidArchive) {
		t.Fatalf("err = %v, want ErrInvalidArchive", err)
	}
}

func TestIngestAmbiguousLanguageNeedsHint(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	archive := buildZip(t, map[string]string{
		"main.py":    "pass\n",
		"solver.cpp": "int main() {}\n",
	})

	if _, err := in.Ingest(archive, "mixed.zip", ""); !errors.Is(err, ErrAmbiguousLanguage) {
		t.Fatalf("err = %v, want ErrAmbiguousLanguage", err)
	}

	desc, err := in.Ingest(archive, "mixed.zip", workspace.LangCpp)
	if err != nil {
		t.Fatalf("Ingest with hint: %v", err)
	}
	if desc.Language != workspace.LangCpp {
		t.Fatalf("language = %q, want cpp", desc.Language)
	}
}

func TestIngestRejectsUnrecognizedSources(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	archive := buildZip(t, map[string]string{"notes.txt": "nothing to run\n"})
	if _, err := in.Ingest(archive, "notes.zip", ""); !errors.Is(err, ErrNoRecognizedSource) {
		t.Fatalf("err = %v, want ErrNoRecognizedSource", err)
	}
}

func TestIngestRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	archive := buildZip(t, map[string]string{"../escape.py": "pass\n"})
	if _, err := in.Ingest(archive, "evil.zip", ""); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("err = %v, want ErrPathTraversal", err)
	}
}

func TestIngestEnforcesExtractionLimits(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	in, err := New(base, 1, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	archive := buildZip(t, map[string]string{"a.py": "pass\n", "b.py": "pass\n"})
	if _, err := in.Ingest(archive, "many.zip", ""); !errors.Is(err, ErrArchiveTooLarge) {
		t.Fatalf("member limit: err = %v, want ErrArchiveTooLarge", err)
	}

	in, err = New(base, 0, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	archive = buildZip(t, map[string]string{"a.py": "print('way past four bytes')\n"})
	if _, err := in.Ingest(archive, "big.zip", ""); !errors.Is(err, ErrArchiveTooLarge) {
		t.Fatalf("size limit: err = %v, want ErrArchiveTooLarge", err)
	}
}

func TestIngestRejectsUnderdeclaredMemberSize(t *testing.T) {
	t.Parallel()

	// A member whose header declares 16 bytes but decompresses to 64 KiB.
	// The declared-size check passes; the ceiling must still hold on the
	// bytes actually written.
	payload := bytes.Repeat([]byte{'a'}, 64<<10)
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("compress payload: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "big.py",
		Method:             zip.Deflate,
		CRC32:              crc32.ChecksumIEEE(payload),
		CompressedSize64:   uint64(compressed.Len()),
		UncompressedSize64: 16,
	})
	if err != nil {
		t.Fatalf("zip create raw: %v", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		t.Fatalf("zip write raw: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	in, err := New(t.TempDir(), 0, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := in.Ingest(buf.Bytes(), "bomb.zip", ""); !errors.Is(err, ErrArchiveTooLarge) {
		t.Fatalf("err = %v, want ErrArchiveTooLarge", err)
	}
}

func TestIngestIDCollisionGetsSuffix(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	in.now = func() time.Time { return fixed }

	archive := buildZip(t, map[string]string{"main.py": "pass\n"})

	first, err := in.Ingest(archive, "proj.zip", "")
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := in.Ingest(archive, "proj.zip", "")
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if first.ID != "proj_20260314_150926" {
		t.Errorf("first id = %q", first.ID)
	}
	if second.ID != "proj_20260314_150926_1" {
		t.Errorf("second id = %q", second.ID)
	}
}

func TestIngestSanitizesFilename(t *testing.T) {
	t.Parallel()

	in := newTestIngestor(t)
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	in.now = func() time.Time { return fixed }

	archive := buildZip(t, map[string]string{"main.py": "pass\n"})
	desc, err := in.Ingest(archive, "my cool (v2).zip", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if desc.ID != "my_cool__v2__20260314_150926" {
		t.Errorf("id = %q", desc.ID)
	}
}
