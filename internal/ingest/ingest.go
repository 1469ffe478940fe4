package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Pelix05/Code-Agent-Project/internal/log"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

const idTimestampLayout = "20060102_150405"

// Ingestor validates uploaded archives and materializes isolated workspaces.
type Ingestor struct {
	root       string
	maxMembers int
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Ingestor rooted at baseDir. maxMembers and maxBytes bound
// archive extraction; non-positive values fall back to the defaults (2000
// members, 200 MiB).
func New(baseDir string, maxMembers int, maxBytes int64) (*Ingestor, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}
	if maxMembers <= 0 {
		maxMembers = 2000
	}
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}
	return &Ingestor{
		root:       filepath.Clean(trimmed),
		maxMembers: maxMembers,
		maxBytes:   maxBytes,
		logger:     log.WithComponent("ingest"),
		now:        time.Now,
	}, nil
}

// Ingest validates archiveBytes, classifies its language, and materializes a
// workspace. hint is only consulted when the archive contains both Python and
// C++ sources. On any error no workspace directory is left behind.
func (in *Ingestor) Ingest(archiveBytes []byte, filename string, hint workspace.Language) (workspace.Descriptor, error) {
	zr, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return workspace.Descriptor{}, ErrInvalidArchive
	}

	// Safety checks run against the archive directory before any member is
	// written to disk.
	if err := checkArchiveSafety(zr, in.maxMembers, in.maxBytes); err != nil {
		return workspace.Descriptor{}, err
	}

	tmpDir, err := os.MkdirTemp("", "code-agent-extract-")
	if err != nil {
		return workspace.Descriptor{}, fmt.Errorf("create extraction directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractAll(zr, tmpDir, in.maxBytes); err != nil {
		return workspace.Descriptor{}, err
	}

	sources, err := enumerateSources(tmpDir)
	if err != nil {
		return workspace.Descriptor{}, fmt.Errorf("enumerate sources: %w", err)
	}

	lang, err := classify(sources, hint)
	if err != nil {
		return workspace.Descriptor{}, err
	}

	id, wsDir, err := in.reserveWorkspace(filename)
	if err != nil {
		return workspace.Descriptor{}, err
	}

	desc, err := in.materialize(id, wsDir, tmpDir, lang, sources)
	if err != nil {
		_ = os.RemoveAll(wsDir)
		return workspace.Descriptor{}, err
	}

	digest := blake3.Sum256(archiveBytes)
	desc.ArchiveDigest = hex.EncodeToString(digest[:])

	in.logger.Info("workspace created",
		"workspace", desc.ID,
		"language", string(desc.Language),
		"sources", len(desc.Sources()),
		"digest", desc.ArchiveDigest,
	)
	return desc, nil
}

// checkArchiveSafety enforces member-count, cumulative-size, and path-safety
// ceilings using only archive metadata.
func checkArchiveSafety(zr *zip.Reader, maxMembers int, maxBytes int64) error {
	if len(zr.File) > maxMembers {
		return fmt.Errorf("%w: %d members (limit %d)", ErrArchiveTooLarge, len(zr.File), maxMembers)
	}

	var total int64
	for _, f := range zr.File {
		total += int64(f.UncompressedSize64)
		if total > maxBytes {
			return fmt.Errorf("%w: uncompressed size exceeds %d bytes", ErrArchiveTooLarge, maxBytes)
		}
		if err := checkMemberPath(f.Name); err != nil {
			return err
		}
	}
	return nil
}

// checkMemberPath rejects absolute paths and parent-directory segments.
// Archive member names are slash-separated regardless of platform.
func checkMemberPath(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty member name", ErrPathTraversal)
	}
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("%w: %q is absolute", ErrPathTraversal, name)
	}
	for _, seg := range strings.Split(path.Clean(name), "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q contains a parent-directory segment", ErrPathTraversal, name)
		}
	}
	return nil
}

// extractAll writes every archive member under destDir. Member paths were
// already vetted; the resolved target is still re-checked against destDir
// before a single byte is written. The cumulative size ceiling is enforced
// again on the bytes actually decompressed; declared member sizes are
// untrusted metadata.
func extractAll(zr *zip.Reader, destDir string, maxBytes int64) error {
	var written int64
	for _, f := range zr.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %q resolves outside extraction root", ErrPathTraversal, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %q: %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent for %q: %w", f.Name, err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: open member %q", ErrInvalidArchive, f.Name)
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return fmt.Errorf("create %q: %w", f.Name, err)
		}
		n, err := io.Copy(dst, io.LimitReader(rc, maxBytes-written+1))
		rc.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %q: %w", f.Name, err)
		}
		written += n
		if written > maxBytes {
			return fmt.Errorf("%w: uncompressed size exceeds %d bytes", ErrArchiveTooLarge, maxBytes)
		}
	}
	return nil
}

// enumerateSources walks root and returns relative source paths by language,
// sorted for deterministic ordering.
func enumerateSources(root string) (map[workspace.Language][]string, error) {
	sources := map[workspace.Language][]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		var lang workspace.Language
		switch strings.ToLower(filepath.Ext(p)) {
		case ".py":
			lang = workspace.LangPy
		case ".cpp":
			lang = workspace.LangCpp
		default:
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("resolve relative path: %w", err)
		}
		sources[lang] = append(sources[lang], filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, files := range sources {
		sort.Strings(files)
	}
	return sources, nil
}

// classify picks the workspace language from the enumerated sources, falling
// back to the uploader's hint only when both languages are present.
func classify(sources map[workspace.Language][]string, hint workspace.Language) (workspace.Language, error) {
	hasPy := len(sources[workspace.LangPy]) > 0
	hasCpp := len(sources[workspace.LangCpp]) > 0

	switch {
	case hasPy && !hasCpp:
		return workspace.LangPy, nil
	case hasCpp && !hasPy:
		return workspace.LangCpp, nil
	case hasPy && hasCpp:
		if hint.Valid() {
			return hint, nil
		}
		return "", ErrAmbiguousLanguage
	default:
		return "", ErrNoRecognizedSource
	}
}

// reserveWorkspace computes a unique workspace id from the upload filename and
// creates its directory.
func (in *Ingestor) reserveWorkspace(filename string) (string, string, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	safe := unsafeIDChars.ReplaceAllString(base, "_")
	if safe == "" {
		safe = "upload"
	}

	if err := os.MkdirAll(in.root, 0o755); err != nil {
		return "", "", fmt.Errorf("create workspace base directory: %w", err)
	}

	ts := in.now().Format(idTimestampLayout)
	id := fmt.Sprintf("%s_%s", safe, ts)
	dir := filepath.Join(in.root, id)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s_%s_%d", safe, ts, counter)
		dir = filepath.Join(in.root, id)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create workspace %q: %w", id, err)
	}
	return id, dir, nil
}

// materialize copies the extracted tree into the immutable snapshot and then
// into the language-shaped working copy.
func (in *Ingestor) materialize(id, wsDir, extractedDir string, lang workspace.Language, sources map[workspace.Language][]string) (workspace.Descriptor, error) {
	snapshotDir := filepath.Join(wsDir, workspace.SnapshotDirName)
	if err := copyTree(extractedDir, snapshotDir); err != nil {
		return workspace.Descriptor{}, fmt.Errorf("materialize snapshot: %w", err)
	}

	var workDir string
	if lang == workspace.LangPy {
		workDir = filepath.Join(wsDir, workspace.PyWorkDirName)
		if err := copyTree(snapshotDir, workDir); err != nil {
			return workspace.Descriptor{}, fmt.Errorf("materialize working copy: %w", err)
		}
	} else {
		workDir = filepath.Join(wsDir, workspace.CppWorkDirName)
		if err := copyTree(snapshotDir, filepath.Join(workDir, workspace.CppNestedDir)); err != nil {
			return workspace.Descriptor{}, fmt.Errorf("materialize working copy: %w", err)
		}
	}

	return workspace.Descriptor{
		ID:          id,
		Language:    lang,
		Root:        wsDir,
		SnapshotDir: snapshotDir,
		WorkDir:     workDir,
		SourceFiles: sources,
		CreatedAt:   in.now(),
	}, nil
}

// copyTree copies a directory tree, creating dstDir and any missing parents.
func copyTree(srcDir, dstDir string) error {
	srcInfo, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("stat source directory: %w", err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %q is not a directory", srcDir)
	}

	if err := os.MkdirAll(dstDir, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == srcDir {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, p)
		if err != nil {
			return fmt.Errorf("resolve relative path: %w", err)
		}
		dstPath := filepath.Join(dstDir, relPath)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("read entry info for %q: %w", p, err)
		}

		switch {
		case d.IsDir():
			if err := os.Mkdir(dstPath, info.Mode().Perm()); err != nil {
				return fmt.Errorf("create directory %q: %w", dstPath, err)
			}
		case info.Mode().IsRegular():
			if err := copyFile(p, dstPath, info.Mode().Perm()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported file type for %q (%s)", p, info.Mode().Type())
		}
		return nil
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	return out.Close()
}
