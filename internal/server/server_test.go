package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-digest/internal/digest"
	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/logger"
	"github.com/Taichi-iskw/yt-digest/internal/model"
	"github.com/Taichi-iskw/yt-digest/internal/pipeline"
	"github.com/Taichi-iskw/yt-digest/internal/repository/run"
	"github.com/Taichi-iskw/yt-digest/internal/storage"
)

type fakeSubmitter struct {
	err     error
	sources []model.Source
}

func (f *fakeSubmitter) Submit(ctx context.Context, source model.Source) (*pipeline.Submission, error) {
	f.sources = append(f.sources, source)
	if f.err != nil {
		return nil, f.err
	}
	record := model.NewRun(source)
	return &pipeline.Submission{
		Run:        record,
		Transcript: &model.Transcript{Path: "/data/runs/" + record.ID + "/transcripts/transcript.txt", Language: "en", Origin: model.OriginCaptions},
		Preview:    "hello world",
	}, nil
}

type fakeProgress struct {
	progress *model.Progress
	err      error
	asked    []string
}

func (f *fakeProgress) Status(ctx context.Context, runID string) (*model.Progress, error) {
	f.asked = append(f.asked, runID)
	return f.progress, f.err
}

type fakeDigester struct {
	err   error
	asked []string
}

func (f *fakeDigester) Summarize(ctx context.Context, runID string) (*digest.Result, error) {
	f.asked = append(f.asked, runID)
	if f.err != nil {
		return nil, f.err
	}
	return &digest.Result{RunID: runID, Text: "short summary", WordCount: 2, Path: "summary.txt"}, nil
}

func (f *fakeDigester) Notes(ctx context.Context, runID string) (*digest.Result, error) {
	f.asked = append(f.asked, runID)
	if f.err != nil {
		return nil, f.err
	}
	return &digest.Result{RunID: runID, Text: "# Notes", WordCount: 2, Path: "detailed_notes.txt", DocxPath: "detailed_notes.docx"}, nil
}

type testServer struct {
	store     *storage.Store
	runs      run.Repository
	submitter *fakeSubmitter
	progress  *fakeProgress
	digester  *fakeDigester
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewStore(t.TempDir())
	ts := &testServer{
		store:     store,
		runs:      run.NewFileRepository(store),
		submitter: &fakeSubmitter{},
		progress:  &fakeProgress{progress: &model.Progress{Status: model.ProgressPartial, CompletedFiles: []string{"transcript_english.txt"}, TotalFiles: 3}},
		digester:  &fakeDigester{},
	}
	srv := New(store, ts.runs, ts.submitter, ts.progress, ts.digester, Options{MaxUploadMB: 1}, logger.Discard())
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProcess_URL(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(formRequest("/process", url.Values{"video_url": {" https://youtu.be/dQw4w9WgXcQ "}}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["transcript_ready"])
	assert.Equal(t, "hello world", body["transcript_preview"])
	assert.NotEmpty(t, body["run_id"])
	assert.Contains(t, body["transcript_path"], "transcript.txt")

	require.Len(t, ts.submitter.sources, 1)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", ts.submitter.sources[0].URL)
}

func TestProcess_Upload(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video_file", "lecture.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.submitter.sources, 1)
	saved := ts.submitter.sources[0].FilePath
	assert.True(t, strings.HasSuffix(saved, "_lecture.mp4"))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(data))
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name       string
		submitErr  error
		values     url.Values
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "nothing supplied",
			values:     url.Values{},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No video or URL provided.",
		},
		{
			name:       "acquisition failure",
			values:     url.Values{"video_url": {"https://youtu.be/dQw4w9WgXcQ"}},
			submitErr:  errors.New(errors.CodeExternal, "video is unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "video is unavailable",
		},
		{
			name:       "invalid source",
			values:     url.Values{"video_url": {"https://youtu.be/dQw4w9WgXcQ"}},
			submitErr:  errors.New(errors.CodeInvalidArg, "bad url"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "bad url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.submitter.err = tt.submitErr

			rec := ts.do(formRequest("/process", tt.values))
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestProcess_UploadTooLarge(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video_file", "big.mp4")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, ts.submitter.sources)
}

func TestProcess_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProgress(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/progress?run_id=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, float64(3), body["total_files"])
	assert.Equal(t, []string{"abc"}, ts.progress.asked)

	ts.progress.err = errors.New(errors.CodeNotFound, "run not found")
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run not found", decode(t, rec)["error"])
}

func TestRuns(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	older := model.NewRun(model.Source{URL: "https://youtu.be/aaaaaaaaaaa"})
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer := model.NewRun(model.Source{URL: "https://youtu.be/bbbbbbbbbbb"})
	for _, r := range []*model.Run{older, newer} {
		_, err := ts.store.Create(r.ID)
		require.NoError(t, err)
		require.NoError(t, ts.runs.Create(ctx, r))
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list runsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, newer.ID, list.Runs[0].ID)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/runs/"+older.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, older.ID, decode(t, rec)["id"])

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/runs/"+model.NewRunID(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarizeAndNotes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(formRequest("/summarize", url.Values{"run_id": {"r1"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "short summary", body["summary"])
	assert.Equal(t, float64(2), body["word_count"])

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/generate_notes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "# Notes", body["notes"])
	assert.Equal(t, "detailed_notes.docx", body["docx_path"])

	assert.Equal(t, []string{"r1", ""}, ts.digester.asked)
}

func TestSummarize_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.digester.err = errors.New(errors.CodeNotFound, "cleaned transcript not found")

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/summarize", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "cleaned transcript not found", decode(t, rec)["error"])

	ts.digester.err = assert.AnError
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/generate_notes", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
