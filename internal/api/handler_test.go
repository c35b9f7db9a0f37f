package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statcube/internal/app"
	"statcube/internal/config"
	internaldb "statcube/internal/db"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	writeDB, readDB := internaldb.OpenTestSQLite(t)
	cfg := &config.Config{
		Languages:       []string{"en-gb"},
		JanitorSchedule: "@every 1h",
		Storage: config.StorageConfig{
			Backend:     config.StorageFilesystem,
			Dir:         t.TempDir(),
			CallTimeout: 10 * time.Second,
			RateRPS:     100,
			RateBurst:   100,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(context.Background(), app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv := httptest.NewServer(NewRouter(NewHandler(a, logger), []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func upload(t *testing.T, url, contents string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "text/csv", bytes.NewReader([]byte(contents)))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestPublishingWorkflow(t *testing.T) {
	srv := newServer(t)

	// Create a dataset.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/datasets", map[string]string{"title": "School absences"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	datasetID := body["id"].(string)

	// Upload the fact table; columns are detected from it.
	facts := "YearCode,AreaCode,Value\n2020,W06000001,10\n2021,W06000002,11\n"
	resp, body = upload(t, srv.URL+"/v1/datasets/"+datasetID+"/revisions?filename=facts.csv&file_type=csv", facts)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	revision := body["revision"].(map[string]any)
	revisionID := revision["id"].(string)
	require.Len(t, body["columns"], 3)

	// Classify every column.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/datasets/"+datasetID+"/classify", map[string]any{
		"assignments": []map[string]string{
			{"column": "Value", "role": "data_values"},
			{"column": "YearCode", "role": "time"},
			{"column": "AreaCode", "role": "dimension"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Value", body["data_values"])

	// Two dimensions were created for the revision.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/revisions/"+revisionID+"/dimensions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dims := body["dimensions"].([]any)
	require.Len(t, dims, 2)

	var yearDimID, areaDimID string
	for _, d := range dims {
		dim := d.(map[string]any)
		switch dim["fact_table_column"] {
		case "YearCode":
			yearDimID = dim["id"].(string)
		case "AreaCode":
			areaDimID = dim["id"].(string)
		}
	}
	require.NotEmpty(t, yearDimID)
	require.NotEmpty(t, areaDimID)

	// Bind the time column to a calendar-year structure.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/dimensions/"+yearDimID+"/bind", map[string]any{
		"kind":    "date",
		"payload": map[string]any{"year_type": "calendar", "year_format": "YYYY"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "date", body["type"])
	assert.Equal(t, "date_code", body["join_column"])

	// Bind the area column as free text.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/dimensions/"+areaDimID+"/bind", map[string]any{"kind": "text"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Preview the time dimension.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/dimensions/"+yearDimID+"/preview?lang=en-gb", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_distinct"])

	// Rebuild the cube and poll until it finishes.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/datasets/"+datasetID+"/cube", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "running", body["status"])

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/datasets/"+datasetID+"/cube", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if body["running"] == false {
			break
		}
		require.True(t, time.Now().Before(deadline), "cube rebuild did not finish")
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBindingFailureBody(t *testing.T) {
	srv := newServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/v1/datasets", map[string]string{"title": "Failures"})
	datasetID := body["id"].(string)

	resp, body := upload(t, srv.URL+"/v1/datasets/"+datasetID+"/revisions?filename=facts.csv&file_type=csv",
		"YearCode,Value\n2020,1\n2020-13,2\n")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	revisionID := body["revision"].(map[string]any)["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/datasets/"+datasetID+"/classify", map[string]any{
		"assignments": []map[string]string{
			{"column": "Value", "role": "data_values"},
			{"column": "YearCode", "role": "time"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/v1/revisions/"+revisionID+"/dimensions", nil)
	dims := body["dimensions"].([]any)
	require.Len(t, dims, 1)
	dimID := dims[0].(map[string]any)["id"].(string)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/dimensions/"+dimID+"/bind", map[string]any{
		"kind":    "date",
		"payload": map[string]any{"year_type": "calendar", "year_format": "YYYY"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "unmatched_date_values", body["code"])
	assert.Equal(t, []any{"2020-13"}, body["fact_values"])
	assert.Equal(t, float64(1), body["total_non_matching"])
}

func TestUnknownDatasetIs404(t *testing.T) {
	srv := newServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/datasets/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteDatasetWithoutCubeIs204(t *testing.T) {
	srv := newServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/datasets", map[string]string{"title": "Short lived"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	datasetID := body["id"].(string)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/datasets/"+datasetID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/datasets/"+datasetID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
