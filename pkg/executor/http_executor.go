package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"resty.dev/v3"

	"github.com/mkostova/taskgrid/pkg/models"
)

// NamespaceHeader tags every request a task issues so the target can
// attribute created resources to exactly one task of one run.
const NamespaceHeader = "X-Resource-Namespace"

// DefaultCleanupPath is the endpoint Cleanup calls when the executor config
// leaves it unset.
const DefaultCleanupPath = "/__cleanup"

// requestSpec is the payload schema the HTTP executor understands.
type requestSpec struct {
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Body         json.RawMessage `json:"body,omitempty"`
	ExpectStatus int             `json:"expect_status"`
	// ExpectContains lists substrings the response body must contain; each
	// entry becomes one named assertion in the ResultRecord.
	ExpectContains []string `json:"expect_contains,omitempty"`
}

// Logger is the narrow logging surface the executor needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// HTTPExecutor runs tasks whose payload describes a single HTTP request
// against the system under test and turns expectation mismatches into
// assertion failures on the ResultRecord.
type HTTPExecutor struct {
	baseURL     string
	cleanupPath string
	client      *resty.Client
	logger      Logger
}

// NewHTTPExecutor builds an executor targeting baseURL. cleanupPath may be
// empty to use DefaultCleanupPath.
func NewHTTPExecutor(baseURL, cleanupPath string, logger Logger) *HTTPExecutor {
	if cleanupPath == "" {
		cleanupPath = DefaultCleanupPath
	}
	return &HTTPExecutor{
		baseURL:     strings.TrimRight(baseURL, "/"),
		cleanupPath: cleanupPath,
		client:      resty.New(),
		logger:      logger,
	}
}

// Close releases the underlying HTTP client.
func (e *HTTPExecutor) Close() error {
	return e.client.Close()
}

// Run issues the request described by the task payload, tagged with the
// namespace, and reports expectation mismatches as assertion failures rather
// than errors. An error return is reserved for the request not happening at
// all (bad payload, transport failure, timeout via ctx).
func (e *HTTPExecutor) Run(ctx context.Context, task models.Task, ns string) (models.ResultRecord, error) {
	var spec requestSpec
	if err := json.Unmarshal(task.Payload, &spec); err != nil {
		return models.ResultRecord{}, errors.Wrapf(err, "task %s: invalid payload", task.ID)
	}
	if spec.Method == "" || spec.Path == "" {
		return models.ResultRecord{}, errors.Errorf("task %s: payload requires method and path", task.ID)
	}

	start := time.Now()
	req := e.client.R().
		SetContext(ctx).
		SetHeader(NamespaceHeader, ns)
	if len(spec.Body) > 0 {
		req.SetHeader("Content-Type", "application/json").SetBody([]byte(spec.Body))
	}
	res, err := req.Execute(strings.ToUpper(spec.Method), e.baseURL+spec.Path)
	if err != nil {
		return models.ResultRecord{}, errors.Wrapf(err, "task %s: request failed", task.ID)
	}

	record := models.ResultRecord{DurationMs: time.Since(start).Milliseconds()}
	body := res.String()

	if spec.ExpectStatus != 0 {
		if res.StatusCode() == spec.ExpectStatus {
			record.PassedCount++
		} else {
			record.FailedCount++
			record.FailureDetails = append(record.FailureDetails, models.FailureDetail{
				Name:     "status code",
				Expected: strconv.Itoa(spec.ExpectStatus),
				Actual:   strconv.Itoa(res.StatusCode()),
				Message:  fmt.Sprintf("%s %s returned unexpected status", spec.Method, spec.Path),
			})
		}
	}
	for _, want := range spec.ExpectContains {
		if strings.Contains(body, want) {
			record.PassedCount++
			continue
		}
		record.FailedCount++
		record.FailureDetails = append(record.FailureDetails, models.FailureDetail{
			Name:     "body contains " + strconv.Quote(want),
			Expected: want,
			Actual:   truncate(body, 200),
			Message:  "response body missing expected content",
		})
	}

	e.logger.Infof("Task %s: %s %s -> %d (%d passed, %d failed)",
		task.ID, spec.Method, spec.Path, res.StatusCode(), record.PassedCount, record.FailedCount)
	return record, nil
}

// Cleanup deletes every resource the target tagged with the namespace. The
// caller swallows failures, so this only reports them.
func (e *HTTPExecutor) Cleanup(ctx context.Context, task models.Task, ns string) error {
	res, err := e.client.R().
		SetContext(ctx).
		SetHeader(NamespaceHeader, ns).
		SetQueryParam("namespace", ns).
		Delete(e.baseURL + e.cleanupPath)
	if err != nil {
		return errors.Wrapf(err, "cleanup for task %s", task.ID)
	}
	if res.IsError() {
		return errors.Errorf("cleanup for task %s: status %d", task.ID, res.StatusCode())
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
