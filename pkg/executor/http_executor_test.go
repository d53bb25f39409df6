package executor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkostova/taskgrid/pkg/executor"
	"github.com/mkostova/taskgrid/pkg/models"
)

type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

func httpTask(id string, payload string) models.Task {
	return models.Task{ID: id, Name: id, Kind: models.StandardTask, Payload: json.RawMessage(payload)}
}

func TestHTTPExecutor_Run_AllAssertionsPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "run-1/t1", r.Header.Get(executor.NamespaceHeader))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42,"state":"created"}`))
	}))
	defer srv.Close()

	e := executor.NewHTTPExecutor(srv.URL, "", testLogger{})
	defer e.Close()

	rec, err := e.Run(context.Background(), httpTask("t1", `{
		"method": "POST",
		"path": "/orders",
		"body": {"sku": "x"},
		"expect_status": 201,
		"expect_contains": ["\"state\":\"created\""]
	}`), "run-1/t1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.PassedCount)
	assert.Equal(t, 0, rec.FailedCount)
	assert.Empty(t, rec.FailureDetails)
	assert.GreaterOrEqual(t, rec.DurationMs, int64(0))
}

func TestHTTPExecutor_Run_StatusMismatchIsAssertionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("validation error"))
	}))
	defer srv.Close()

	e := executor.NewHTTPExecutor(srv.URL, "", testLogger{})
	defer e.Close()

	rec, err := e.Run(context.Background(), httpTask("t1", `{
		"method": "GET",
		"path": "/orders",
		"expect_status": 200,
		"expect_contains": ["orders"]
	}`), "run-1/t1")
	require.NoError(t, err, "a failed assertion is a result, not an error")
	assert.Equal(t, 0, rec.PassedCount)
	assert.Equal(t, 2, rec.FailedCount)
	require.Len(t, rec.FailureDetails, 2)
	assert.Equal(t, "status code", rec.FailureDetails[0].Name)
	assert.Equal(t, "200", rec.FailureDetails[0].Expected)
	assert.Equal(t, "400", rec.FailureDetails[0].Actual)
}

func TestHTTPExecutor_Run_InvalidPayload(t *testing.T) {
	e := executor.NewHTTPExecutor("http://127.0.0.1:1", "", testLogger{})
	defer e.Close()

	_, err := e.Run(context.Background(), httpTask("t1", `{"method": "GET"}`), "run-1/t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload requires method and path")

	_, err = e.Run(context.Background(), httpTask("t2", `not json`), "run-1/t2")
	assert.Error(t, err)
}

func TestHTTPExecutor_Run_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	e := executor.NewHTTPExecutor(srv.URL, "", testLogger{})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, httpTask("t1", `{"method":"GET","path":"/slow","expect_status":200}`), "run-1/t1")
	assert.Error(t, err)
}

func TestHTTPExecutor_Cleanup(t *testing.T) {
	var gotNS, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		gotNS = r.URL.Query().Get("namespace")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := executor.NewHTTPExecutor(srv.URL, "", testLogger{})
	defer e.Close()

	require.NoError(t, e.Cleanup(context.Background(), models.Task{ID: "t1"}, "run-1/t1"))
	assert.Equal(t, executor.DefaultCleanupPath, gotPath)
	assert.Equal(t, "run-1/t1", gotNS)
}

func TestHTTPExecutor_CleanupErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := executor.NewHTTPExecutor(srv.URL, "/cleanup", testLogger{})
	defer e.Close()

	err := e.Cleanup(context.Background(), models.Task{ID: "t1"}, "run-1/t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
