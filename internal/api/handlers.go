package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/Pelix05/Code-Agent-Project/internal/command"
	"github.com/Pelix05/Code-Agent-Project/internal/ingest"
	"github.com/Pelix05/Code-Agent-Project/internal/queue"
	"github.com/Pelix05/Code-Agent-Project/internal/status"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		s.logger.Error("failed to compute queue depth", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute queue depth")
		return
	}

	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    depth,
		Workspaces:    s.workspaces.Count(),
	})
}

// handleUpload handles POST /upload: multipart "file" plus an optional
// "file_type" hint for mixed-language archives. A successful upload registers
// the workspace and enqueues one pipeline run.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	var hint workspace.Language
	if ft := strings.TrimSpace(r.FormValue("file_type")); ft != "" {
		hint = workspace.Language(ft)
		if !hint.Valid() {
			s.writeError(w, http.StatusBadRequest, "file_type must be 'py' or 'cpp'")
			return
		}
	}

	desc, err := s.ingestor.Ingest(data, header.Filename, hint)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidArchive),
			errors.Is(err, ingest.ErrArchiveTooLarge),
			errors.Is(err, ingest.ErrPathTraversal),
			errors.Is(err, ingest.ErrAmbiguousLanguage),
			errors.Is(err, ingest.ErrNoRecognizedSource):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("ingest failed", "filename", header.Filename, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to ingest archive")
		}
		return
	}

	if err := s.workspaces.Record(desc); err != nil {
		s.logger.Error("failed to register workspace", "workspace", desc.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to register workspace")
		return
	}

	runID, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		WorkspaceID: desc.ID,
		Language:    string(desc.Language),
		SubmittedBy: "api",
	})
	if err != nil {
		s.logger.Error("failed to enqueue run", "workspace", desc.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue run")
		return
	}

	s.logger.Info("upload accepted", "workspace", desc.ID, "language", string(desc.Language), "run_id", runID)
	s.writeJSON(w, http.StatusOK, UploadResponse{Status: statusAccepted, Workspace: desc.ID})
}

// handleStatus handles GET /status?ws=<id>.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	wsID := r.URL.Query().Get("ws")
	if wsID == "" {
		s.writeError(w, http.StatusBadRequest, "missing ws parameter")
		return
	}

	report, err := s.statuses.Read(wsID)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Workspace not found")
			return
		}
		s.logger.Error("failed to read status", "workspace", wsID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}

	switch {
	case report.Processing:
		s.writeJSON(w, http.StatusOK, StatusResponse{Status: statusProcessing})
	case report.Marker == status.MarkerDone:
		s.writeJSON(w, http.StatusOK, StatusResponse{Status: statusDone, Result: report.Result})
	default:
		s.writeJSON(w, http.StatusOK, StatusResponse{Status: report.Marker})
	}
}

// handleProcess handles POST /process: a free-text operator command routed
// through the command grammar. Chat and unmatched input get a canned reply;
// recognized commands run synchronously against the target workspace.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	intent := command.Parse(r.PostFormValue("command"))
	if intent.Kind != command.KindCommand {
		s.writeReply(w, intent.Reply)
		return
	}

	ws, ok := s.resolveWorkspace(r.PostFormValue("ws"))
	if !ok {
		s.writeReply(w, command.ReplyNoWorkspace)
		return
	}

	if lang := intent.Command.Lang; lang != "" && lang != ws.Language {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("workspace %q holds a %s project, not %s", ws.ID, ws.Language, lang))
		return
	}

	ts := s.toolsets[ws.Language]
	if ts == nil {
		s.writeError(w, http.StatusInternalServerError, "no toolset for language "+string(ws.Language))
		return
	}

	var result json.RawMessage
	switch intent.Command.Op {
	case command.OpStatic:
		out, err := ts.Analyze(r.Context(), ws)
		result = textResult(out, err)
	case command.OpDynamic:
		// The foreground command reports the raw transcript; eliding the
		// patch banner is the background pipeline's concern.
		out, err := ts.Test(r.Context(), ws)
		result = textResult(out, err)
	case command.OpAutoFix:
		report, err := ts.Fix(r.Context(), ws)
		if err != nil {
			report, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		result = report
	case command.OpPatch:
		records, err := s.applier.ApplyAll(r.Context(), s.config.PatchDirs[ws.Language], ws.WorkingTree())
		if err != nil {
			s.logger.Error("patch application failed", "workspace", ws.ID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "patch application failed")
			return
		}
		result, _ = json.Marshal(records)
	case command.OpComparePatch:
		cmp, code, err := s.compare(ws, "")
		if err != nil {
			s.writeError(w, code, err.Error())
			return
		}
		result, _ = json.Marshal(cmp)
	default:
		s.writeError(w, http.StatusBadRequest, "unsupported command")
		return
	}

	s.writeJSON(w, http.StatusOK, ProcessResponse{Status: statusSuccess, Result: result})
}

// handleComparePatch handles POST /compare_patch: unified diff of one file
// between the pristine snapshot and the (possibly patched) working copy.
func (s *Server) handleComparePatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	ws, ok := s.resolveWorkspace(r.PostFormValue("ws"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "no workspace uploaded yet")
		return
	}

	cmp, code, err := s.compare(ws, r.PostFormValue("file_path"))
	if err != nil {
		s.writeError(w, code, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

// compare diffs one file between snapshot and working copy. An empty filePath
// defaults to the workspace's first enumerated source file.
func (s *Server) compare(ws workspace.Descriptor, filePath string) (CompareResponse, int, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		sources := ws.Sources()
		if len(sources) == 0 {
			return CompareResponse{}, http.StatusBadRequest, fmt.Errorf("workspace has no source files")
		}
		filePath = sources[0]
	}
	if err := checkRelPath(filePath); err != nil {
		return CompareResponse{}, http.StatusBadRequest, err
	}

	before, err := os.ReadFile(filepath.Join(ws.SnapshotDir, filepath.FromSlash(filePath)))
	if err != nil {
		return CompareResponse{}, http.StatusBadRequest, fmt.Errorf("file %q not found in workspace snapshot", filePath)
	}

	after, err := os.ReadFile(filepath.Join(ws.WorkingTree(), filepath.FromSlash(filePath)))
	if err != nil {
		return CompareResponse{}, http.StatusBadRequest, fmt.Errorf("file %q not found in working copy", filePath)
	}

	fromLabel := workspace.SnapshotDirName + "/" + filePath
	toLabel := filePath
	if rel, relErr := filepath.Rel(ws.Root, filepath.Join(ws.WorkingTree(), filepath.FromSlash(filePath))); relErr == nil {
		toLabel = filepath.ToSlash(rel)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	})
	if err != nil {
		return CompareResponse{}, http.StatusInternalServerError, fmt.Errorf("compute diff for %q", filePath)
	}

	return CompareResponse{
		Status:    statusSuccess,
		Workspace: ws.ID,
		File:      filePath,
		Diff:      diff,
	}, http.StatusOK, nil
}

// resolveWorkspace returns the named workspace, or the current one when wsID
// is empty.
func (s *Server) resolveWorkspace(wsID string) (workspace.Descriptor, bool) {
	if wsID = strings.TrimSpace(wsID); wsID != "" {
		return s.workspaces.Get(wsID)
	}
	return s.workspaces.Current()
}

func (s *Server) writeReply(w http.ResponseWriter, reply string) {
	result, _ := json.Marshal(reply)
	s.writeJSON(w, http.StatusOK, ProcessResponse{Status: statusSuccess, Result: result})
}

// textResult wraps stage output, or its error, as a JSON string.
func textResult(out string, err error) json.RawMessage {
	if err != nil && out == "" {
		out = err.Error()
	}
	result, _ := json.Marshal(out)
	return result
}

// checkRelPath rejects file paths that could escape the workspace.
func checkRelPath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("file_path must be relative")
	}
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Clean(p)), "/") {
		if seg == ".." {
			return fmt.Errorf("file_path must not contain parent-directory segments")
		}
	}
	return nil
}
