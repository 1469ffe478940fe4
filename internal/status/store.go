package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Marker values written to the workspace status file. Anything else found in
// the file is reported back verbatim.
const (
	MarkerDone  = "done"
	MarkerError = "error"
)

const (
	statusFileName = "status.txt"
	resultFileName = "result.json"
)

// ErrNotFound means the workspace directory does not exist.
var ErrNotFound = errors.New("unknown workspace")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Report is the externally visible state of one pipeline run.
type Report struct {
	// Processing is true while no status marker has been written yet.
	Processing bool
	// Marker is the raw status marker, empty while processing.
	Marker string
	// Result holds the persisted result document when Marker is "done".
	Result json.RawMessage
}

// Store persists pipeline outcomes inside each workspace directory, so a
// restart never loses the status of finished runs. The result document is
// fully written and renamed into place before the status marker appears;
// a reader that sees "done" can always load the result.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: filepath.Clean(baseDir)}
}

func (s *Store) workspaceDir(wsID string) (string, error) {
	// An id that could never name a workspace reads as unknown, not as an
	// internal failure.
	if !validID.MatchString(wsID) {
		return "", fmt.Errorf("%w: invalid id %q", ErrNotFound, wsID)
	}
	return filepath.Join(s.baseDir, wsID), nil
}

// Persist writes result (when non-nil) and then the status marker for wsID.
func (s *Store) Persist(wsID, marker string, result []byte) error {
	dir, err := s.workspaceDir(wsID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, wsID)
		}
		return fmt.Errorf("stat workspace %q: %w", wsID, err)
	}

	if result != nil {
		if err := writeFileAtomic(filepath.Join(dir, resultFileName), result); err != nil {
			return fmt.Errorf("persist result for %q: %w", wsID, err)
		}
	}
	if err := writeFileAtomic(filepath.Join(dir, statusFileName), []byte(marker)); err != nil {
		return fmt.Errorf("persist status for %q: %w", wsID, err)
	}
	return nil
}

// Read reports the state of wsID.
func (s *Store) Read(wsID string) (Report, error) {
	dir, err := s.workspaceDir(wsID)
	if err != nil {
		return Report{}, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return Report{}, fmt.Errorf("%w: %s", ErrNotFound, wsID)
		}
		return Report{}, fmt.Errorf("stat workspace %q: %w", wsID, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, statusFileName))
	if os.IsNotExist(err) {
		return Report{Processing: true}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("read status for %q: %w", wsID, err)
	}

	marker := strings.TrimSpace(string(raw))
	if marker != MarkerDone {
		return Report{Marker: marker}, nil
	}

	resultBytes, err := os.ReadFile(filepath.Join(dir, resultFileName))
	if err != nil {
		return Report{}, fmt.Errorf("read result for %q: %w", wsID, err)
	}
	if !json.Valid(resultBytes) {
		return Report{}, fmt.Errorf("result for %q is not valid JSON", wsID)
	}
	return Report{Marker: MarkerDone, Result: json.RawMessage(resultBytes)}, nil
}

// writeFileAtomic writes data to a sibling temp file and renames it into
// place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
