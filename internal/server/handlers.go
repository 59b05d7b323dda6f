package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
)

const multipartMemory = 32 << 20

type processResponse struct {
	Status            string `json:"status"`
	RunID             string `json:"run_id"`
	TranscriptReady   bool   `json:"transcript_ready"`
	TranscriptPath    string `json:"transcript_path"`
	TranscriptPreview string `json:"transcript_preview"`
	Origin            string `json:"origin"`
	Language          string `json:"language"`
}

type digestResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Summary   string `json:"summary,omitempty"`
	Notes     string `json:"notes,omitempty"`
	WordCount int    `json:"word_count"`
	Path      string `json:"path"`
	DocxPath  string `json:"docx_path,omitempty"`
	Fallback  bool   `json:"fallback"`
}

type runsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}

// handleProcess acquires the transcript of a video URL or an uploaded file
// and answers before the rest of the pipeline finishes
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadMB<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeProcessError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.opts.MaxUploadMB))
			return
		}
		writeProcessError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	source := model.Source{URL: strings.TrimSpace(r.FormValue("video_url"))}
	if source.URL == "" {
		path, err := s.saveUpload(r)
		if err != nil {
			reqLog.WithError(err).Warn("upload rejected")
			writeProcessError(w, http.StatusBadRequest, errors.MessageOf(err))
			return
		}
		if path == "" {
			writeProcessError(w, http.StatusBadRequest, "No video or URL provided.")
			return
		}
		source.FilePath = path
	}

	sub, err := s.submitter.Submit(r.Context(), source)
	if err != nil {
		reqLog.WithError(err).Error("processing failed")
		status := http.StatusInternalServerError
		if errors.CodeOf(err) == errors.CodeInvalidArg {
			status = http.StatusBadRequest
		}
		writeProcessError(w, status, errors.MessageOf(err))
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Status:            "success",
		RunID:             sub.Run.ID,
		TranscriptReady:   true,
		TranscriptPath:    sub.Transcript.Path,
		TranscriptPreview: sub.Preview,
		Origin:            string(sub.Transcript.Origin),
		Language:          sub.Transcript.Language,
	})
}

func writeProcessError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: "error", Message: message})
}

// saveUpload stores the video_file part in the uploads area. It returns an
// empty path when the request carries no file.
func (s *Server) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("video_file")
	if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidArg, "failed to read uploaded file")
	}
	defer file.Close()

	path, err := s.store.UploadPath(header.Filename)
	if err != nil {
		return "", err
	}
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to store upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", errors.Wrap(err, errors.CodeInternal, "failed to store upload")
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to store upload")
	}
	return path, nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.progress.Status(r.Context(), r.URL.Query().Get("run_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}
	if limit == 0 {
		limit = run.DefaultListLimit
	}

	runs, err := s.runs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Limit: limit, Offset: offset})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	result, err := s.digester.Summarize(r.Context(), r.FormValue("run_id"))
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("summary failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, digestResponse{
		Status:    "success",
		RunID:     result.RunID,
		Summary:   result.Text,
		WordCount: result.WordCount,
		Path:      result.Path,
		Fallback:  result.Fallback,
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	result, err := s.digester.Notes(r.Context(), r.FormValue("run_id"))
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("notes failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, digestResponse{
		Status:    "success",
		RunID:     result.RunID,
		Notes:     result.Text,
		WordCount: result.WordCount,
		Path:      result.Path,
		DocxPath:  result.DocxPath,
		Fallback:  result.Fallback,
	})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(errors.CodeInvalidArg, fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}
