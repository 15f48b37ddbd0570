package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bulk-order-service/controllers"
	"bulk-order-service/database"
	"bulk-order-service/models"
	"bulk-order-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- mocks ----

type mockBulkService struct {
	validateResult *models.BulkOrderParseResult
	validateErr    error
	processResult  *models.BulkOrderResult
	processErr     error
	progressEvents []models.BulkProcessingStatus
	seenUserID     string
	seenBody       string
}

func (m *mockBulkService) ValidateUpload(_ context.Context, r io.Reader) (*models.BulkOrderParseResult, error) {
	data, _ := io.ReadAll(r)
	m.seenBody = string(data)
	return m.validateResult, m.validateErr
}

func (m *mockBulkService) ProcessUpload(_ context.Context, r io.Reader, userID string, onProgress services.ProgressFunc) (*models.BulkOrderResult, error) {
	data, _ := io.ReadAll(r)
	m.seenBody = string(data)
	m.seenUserID = userID
	if onProgress != nil {
		for _, ev := range m.progressEvents {
			onProgress(ev)
		}
	}
	return m.processResult, m.processErr
}

type mockQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (m *mockQueue) Enqueue(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ids = append(m.ids, id)
	return nil
}

func newTestRouter(t *testing.T, svc *mockBulkService, jobs database.JobStore, queue *mockQueue) *gin.Engine {
	t.Helper()
	ctrl := controllers.NewBulkOrderController(svc, jobs, queue, nil, controllers.NewRequestValidator(1024), t.TempDir())

	router := gin.New()
	router.POST("/bulk-orders", ctrl.CreateBulkOrder)
	router.POST("/bulk-orders/validate", ctrl.ValidateBulkOrder)
	router.GET("/bulk-orders/jobs/:id", ctrl.GetJobStatus)
	router.GET("/bulk-orders/runs", ctrl.ListRuns)
	return router
}

func csvUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	assert.NoError(t, err)
	_, err = part.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestCreateBulkOrderMissingFile(t *testing.T) {
	router := newTestRouter(t, &mockBulkService{}, database.NewMemoryJobStore(), &mockQueue{})

	req := httptest.NewRequest(http.MethodPost, "/bulk-orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
}

func TestCreateBulkOrderRejectsNonCSV(t *testing.T) {
	router := newTestRouter(t, &mockBulkService{}, database.NewMemoryJobStore(), &mockQueue{})

	body, contentType := csvUpload(t, "orders.pdf", "SKU-1,2\n")
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Only CSV files")
}

func TestCreateBulkOrderRejectsOversizedUpload(t *testing.T) {
	router := newTestRouter(t, &mockBulkService{}, database.NewMemoryJobStore(), &mockQueue{})

	body, contentType := csvUpload(t, "orders.csv", strings.Repeat("SKU-1,2\n", 300))
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too large")
}

func TestCreateBulkOrderStreamsProgressAndCompleted(t *testing.T) {
	svc := &mockBulkService{
		progressEvents: []models.BulkProcessingStatus{
			{Phase: models.PhaseProcessing, TotalItems: 20, ProcessedItems: 10, CurrentBatch: 1, TotalBatches: 2},
			{Phase: models.PhaseProcessing, TotalItems: 20, ProcessedItems: 20, CurrentBatch: 2, TotalBatches: 2},
		},
		processResult: &models.BulkOrderResult{
			Success:        true,
			ItemsProcessed: 20,
			ItemsAdded:     20,
			TotalValue:     50,
			ProcessingTime: 120 * time.Millisecond,
		},
	}
	router := newTestRouter(t, svc, database.NewMemoryJobStore(), &mockQueue{})

	body, contentType := csvUpload(t, "orders.csv", "SKU-1,2\nSKU-2,3\n")
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 3)

	var first models.ProgressEvent
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, models.EventTypeProgress, first.Type)
	assert.Equal(t, 50, first.Percentage)

	var last models.CompletedEvent
	assert.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, models.EventTypeCompleted, last.Type)
	assert.True(t, last.Success)
	assert.Equal(t, 20, last.TotalProcessed)
}

func TestCreateBulkOrderStructuralErrorIsPlainJSON(t *testing.T) {
	svc := &mockBulkService{processErr: errors.New("CSV file is empty")}
	router := newTestRouter(t, svc, database.NewMemoryJobStore(), &mockQueue{})

	body, contentType := csvUpload(t, "orders.csv", "")
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// rejected before any stream event, so the client gets a normal error body
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CSV file is empty")
	assert.NotContains(t, w.Body.String(), `"type"`)
}

func TestCreateBulkOrderAsyncQueuesJob(t *testing.T) {
	jobs := database.NewMemoryJobStore()
	queue := &mockQueue{}
	router := newTestRouter(t, &mockBulkService{}, jobs, queue)

	body, contentType := csvUpload(t, "orders.csv", "SKU-1,2\n")
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders?async=true", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID := resp["job_id"]
	assert.NotEmpty(t, jobID)
	assert.Equal(t, []string{jobID}, queue.ids)

	job, err := jobs.Get(context.Background(), jobID)
	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.NotEmpty(t, job.FilePath)
}

func TestValidateBulkOrderReturnsParseResult(t *testing.T) {
	svc := &mockBulkService{
		validateResult: &models.BulkOrderParseResult{
			Success: false,
			Rows:    []models.BulkOrderRow{{SKU: "SKU-1", Quantity: 2, Line: 1}},
			Errors:  []models.RowError{{Line: 2, Message: "quantity must be a positive integer"}},
		},
	}
	router := newTestRouter(t, svc, database.NewMemoryJobStore(), &mockQueue{})

	body, contentType := csvUpload(t, "orders.csv", "SKU-1,2\nSKU-2,zero\n")
	req := httptest.NewRequest(http.MethodPost, "/bulk-orders/validate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result models.BulkOrderParseResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Len(t, result.Rows, 1)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, "SKU-1,2\nSKU-2,zero\n", svc.seenBody)
}

func TestGetJobStatus(t *testing.T) {
	jobs := database.NewMemoryJobStore()
	router := newTestRouter(t, &mockBulkService{}, jobs, &mockQueue{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bulk-orders/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	err := jobs.Set(context.Background(), &models.BulkOrderJob{
		ID:     "job-1",
		Status: models.JobStatusDone,
	}, time.Hour)
	assert.NoError(t, err)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bulk-orders/jobs/job-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var job models.BulkOrderJob
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusDone, job.Status)
}

func TestListRunsWithoutHistoryBackend(t *testing.T) {
	router := newTestRouter(t, &mockBulkService{}, database.NewMemoryJobStore(), &mockQueue{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bulk-orders/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
