package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobfeed/src/infrastructure/queue"
	"jobfeed/src/storage/postgres/importrunctrl"
)

type fakeQueue struct {
	enqueued []string
	counts   queue.Counts
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, feedURL, source string, _ time.Duration) (*queue.Enqueued, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.enqueued = append(q.enqueued, feedURL)
	return &queue.Enqueued{
		TaskID:      "task-1",
		ImportRunID: int64(len(q.enqueued)),
		URL:         feedURL,
		Source:      source,
	}, nil
}

func (q *fakeQueue) Counts(context.Context) (*queue.Counts, error) {
	if q.err != nil {
		return nil, q.err
	}
	return &q.counts, nil
}

type fakeSweeper struct {
	queued []queue.Enqueued
	err    error
}

func (s *fakeSweeper) ImportAll(context.Context) ([]queue.Enqueued, error) {
	return s.queued, s.err
}

type fakeRunReader struct {
	runs  []importrunctrl.ImportRun
	total int64
	err   error
}

func (r *fakeRunReader) Get(_ context.Context, id int64) (*importrunctrl.ImportRun, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.runs {
		if r.runs[i].ID == id {
			return &r.runs[i], nil
		}
	}
	return nil, importrunctrl.ErrRunNotFound
}

func (r *fakeRunReader) List(_ context.Context, _, _ int, _ string) ([]importrunctrl.ImportRun, int64, error) {
	return r.runs, r.total, r.err
}

func newTestRouter(q *fakeQueue, sweeper *fakeSweeper, runs *fakeRunReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewImportHandler(q, sweeper, runs).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
}

func TestStartImport(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRouter(q, &fakeSweeper{}, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodPost, "/import/start",
		`{"urls":["https://jobicy.com/?feed=job_feed","https://www.higheredjobs.com/rss/articleFeed.cfm"]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "2 import jobs queued successfully", resp["message"])
	assert.Len(t, q.enqueued, 2)

	data, ok := resp["data"].([]interface{})
	require.True(t, ok)
	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jobicy", first["source"])
	assert.NotEmpty(t, first["jobId"])
	assert.NotEmpty(t, first["importLogId"])
}

func TestStartImportRequiresURLs(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, &fakeRunReader{})

	for _, body := range []string{"", `{}`, `{"urls":[]}`, `not json`} {
		w, resp := doRequest(t, r, http.MethodPost, "/import/start", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "urls array is required", resp["message"])
	}
}

func TestStartImportEnqueueFailure(t *testing.T) {
	q := &fakeQueue{err: errors.New("database unavailable")}
	r := newTestRouter(q, &fakeSweeper{}, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodPost, "/import/start",
		`{"urls":["https://jobicy.com/?feed=job_feed"]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestStartAutoImport(t *testing.T) {
	sweeper := &fakeSweeper{queued: []queue.Enqueued{
		{TaskID: "task-1", ImportRunID: 1, URL: "https://jobicy.com/?feed=job_feed", Source: "jobicy"},
	}}
	r := newTestRouter(&fakeQueue{}, sweeper, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodPost, "/import/auto", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 auto import jobs queued successfully", resp["message"])
}

func TestListEndpoints(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodGet, "/import/endpoints", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok)

	endpoints, ok := data["endpoints"].([]interface{})
	require.True(t, ok)
	assert.Len(t, endpoints, 9)

	sources, ok := data["sources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(8), sources["jobicy"])
	assert.Equal(t, float64(1), sources["higheredjobs"])

	categories, ok := data["categories"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, categories)
}

func TestQueueStatus(t *testing.T) {
	q := &fakeQueue{counts: queue.Counts{Waiting: 3, Active: 1, Completed: 10, Failed: 2}}
	r := newTestRouter(q, &fakeSweeper{}, &fakeRunReader{})

	w, resp := doRequest(t, r, http.MethodGet, "/import/queue/status", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["waiting"])
	assert.Equal(t, float64(1), data["active"])
	assert.Equal(t, float64(10), data["completed"])
	assert.Equal(t, float64(2), data["failed"])
}

func TestImportHistoryPagination(t *testing.T) {
	runs := &fakeRunReader{
		runs:  []importrunctrl.ImportRun{{ID: 1, Source: "jobicy", Status: importrunctrl.StatusCompleted}},
		total: 25,
	}
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, runs)

	w, resp := doRequest(t, r, http.MethodGet, "/import/history?page=2&limit=10", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["page"])
	assert.Equal(t, float64(10), pagination["limit"])
	assert.Equal(t, float64(25), pagination["total"])
	assert.Equal(t, float64(3), pagination["pages"])

	logs, ok := data["logs"].([]interface{})
	require.True(t, ok)
	assert.Len(t, logs, 1)
}

func TestImportHistoryClampsLimit(t *testing.T) {
	runs := &fakeRunReader{total: 5}
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, runs)

	w, resp := doRequest(t, r, http.MethodGet, "/import/history?limit=500", "")

	assert.Equal(t, http.StatusOK, w.Code)
	pagination := resp["data"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, float64(10), pagination["limit"])
}

func TestImportRunDetails(t *testing.T) {
	runs := &fakeRunReader{runs: []importrunctrl.ImportRun{
		{ID: 42, Source: "jobicy", Status: importrunctrl.StatusCompleted},
	}}
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{}, runs)

	w, resp := doRequest(t, r, http.MethodGet, "/import/history/42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(42), data["id"])

	w, resp = doRequest(t, r, http.MethodGet, "/import/history/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "import run not found", resp["message"])

	w, _ = doRequest(t, r, http.MethodGet, "/import/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
