package ingest

import "errors"

// Ingestion failures are surfaced synchronously to the uploader; none of them
// leave a workspace behind.
var (
	// ErrInvalidArchive means the payload is not a readable ZIP container.
	ErrInvalidArchive = errors.New("the uploaded file is not a valid ZIP file")

	// ErrArchiveTooLarge means the archive exceeds the member-count or
	// cumulative uncompressed-size ceiling.
	ErrArchiveTooLarge = errors.New("unsafe archive: exceeds extraction limits")

	// ErrPathTraversal means a member path is absolute, contains a
	// parent-directory segment, or resolves outside the extraction root.
	ErrPathTraversal = errors.New("unsafe archive: member path escapes extraction root")

	// ErrAmbiguousLanguage means the archive holds both Python and C++
	// sources and no hint was given.
	ErrAmbiguousLanguage = errors.New("archive contains both Python and C++ files: please specify file_type ('py' or 'cpp')")

	// ErrNoRecognizedSource means the archive holds neither Python nor C++
	// sources.
	ErrNoRecognizedSource = errors.New("no Python or C++ files found in the uploaded zip")
)
