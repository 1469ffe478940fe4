package workspace

import (
	"path/filepath"
	"time"
)

// Language identifies the primary language of an uploaded project.
type Language string

const (
	LangPy  Language = "py"
	LangCpp Language = "cpp"
)

// Valid reports whether l is a recognized language.
func (l Language) Valid() bool {
	return l == LangPy || l == LangCpp
}

// Directory layout inside a workspace. The snapshot is never mutated after
// creation; tools only ever touch the working copy. C++ projects are nested
// one level down because the downstream toolchain expects a puzzle-2 folder
// under the project root.
const (
	SnapshotDirName = "uploaded_source"
	PyWorkDirName   = "python_repo"
	CppWorkDirName  = "cpp_project"
	CppNestedDir    = "puzzle-2"
)

// Descriptor describes one materialized workspace.
type Descriptor struct {
	ID            string
	Language      Language
	Root          string
	SnapshotDir   string
	WorkDir       string
	SourceFiles   map[Language][]string
	ArchiveDigest string
	CreatedAt     time.Time
}

// WorkingTree returns the directory inside the working copy that mirrors the
// snapshot tree. For Python that is the working copy itself; for C++ it is the
// nested project folder.
func (d Descriptor) WorkingTree() string {
	if d.Language == LangCpp {
		return filepath.Join(d.WorkDir, CppNestedDir)
	}
	return d.WorkDir
}

// Sources returns the enumerated relative source paths for the workspace's
// detected language.
func (d Descriptor) Sources() []string {
	return d.SourceFiles[d.Language]
}

// clone returns an independent copy of d so registry callers can never race
// with later updates.
func (d Descriptor) clone() Descriptor {
	out := d
	out.SourceFiles = make(map[Language][]string, len(d.SourceFiles))
	for lang, files := range d.SourceFiles {
		out.SourceFiles[lang] = append([]string(nil), files...)
	}
	return out
}
