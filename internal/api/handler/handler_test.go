package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"payguard/backend/internal/dto"
	"payguard/backend/internal/model"
	"payguard/backend/internal/service"
	pkgerrors "payguard/backend/pkg/errors"
	"payguard/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AnomalyService ──

type mockAnomalyService struct {
	scanResult    *dto.ScanResult
	scanErr       error
	scanCompany   string
	scanRefDate   time.Time
	listResult    []dto.AnomalyResponse
	listErr       error
	listReq       *dto.AnomalyListRequest
	resolveResult *dto.AnomalyResponse
	resolveErr    error
	resolvedBy    string
	targetCompany string
	targetID      string
	attachResult  *dto.AnomalyResponse
	attachErr     error
	summaryResult *dto.SummaryResponse
	summaryErr    error
}

func (m *mockAnomalyService) Scan(_ context.Context, _ *service.ScanInput) (*dto.ScanResult, error) {
	return m.scanResult, m.scanErr
}
func (m *mockAnomalyService) ScanCompany(_ context.Context, companyID string, ref time.Time) (*dto.ScanResult, error) {
	m.scanCompany = companyID
	m.scanRefDate = ref
	return m.scanResult, m.scanErr
}
func (m *mockAnomalyService) ListAnomalies(_ context.Context, _ string, req *dto.AnomalyListRequest) ([]dto.AnomalyResponse, error) {
	m.listReq = req
	return m.listResult, m.listErr
}
func (m *mockAnomalyService) ResolveAnomaly(_ context.Context, companyID, anomalyID, _, resolverID string) (*dto.AnomalyResponse, error) {
	m.targetCompany, m.targetID = companyID, anomalyID
	m.resolvedBy = resolverID
	return m.resolveResult, m.resolveErr
}
func (m *mockAnomalyService) AttachRemediationReference(_ context.Context, companyID, anomalyID, _ string) (*dto.AnomalyResponse, error) {
	m.targetCompany, m.targetID = companyID, anomalyID
	return m.attachResult, m.attachErr
}
func (m *mockAnomalyService) GetSummary(_ context.Context, _ string) (*dto.SummaryResponse, error) {
	return m.summaryResult, m.summaryErr
}

// ── Mock ReputationService ──

type mockReputationService struct {
	companyID    string
	getManyIDs   []string
	importResult *dto.ReputationImportResponse
	importErr    error
}

func (m *mockReputationService) Get(_ context.Context, id string) (*model.Reputation, error) {
	return &model.Reputation{EmployeeID: id, Score: 75}, nil
}
func (m *mockReputationService) GetMany(_ context.Context, companyID string, ids []string) ([]dto.ReputationResponse, error) {
	m.companyID = companyID
	m.getManyIDs = ids
	out := make([]dto.ReputationResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, dto.ReputationResponse{EmployeeID: id, Score: 75})
	}
	return out, nil
}
func (m *mockReputationService) Penalize(_ context.Context, _ string) (*model.Reputation, error) {
	return nil, nil
}
func (m *mockReputationService) Recover(_ context.Context, _ string) (*model.Reputation, error) {
	return nil, nil
}
func (m *mockReputationService) Confirm(_ context.Context, _ string) (*model.Reputation, error) {
	return nil, nil
}
func (m *mockReputationService) DecideAction(_ context.Context, _ string) (string, error) {
	return model.ActionManualReview, nil
}
func (m *mockReputationService) Export(_ context.Context, companyID string) ([]dto.ReputationSnapshotItem, error) {
	m.companyID = companyID
	return []dto.ReputationSnapshotItem{{EmployeeID: "emp-1", Score: 60}}, nil
}
func (m *mockReputationService) Import(_ context.Context, companyID string, _ *dto.ReputationImportRequest) (*dto.ReputationImportResponse, error) {
	m.companyID = companyID
	return m.importResult, m.importErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportAnomalies(_ context.Context, _ string, _ *dto.AnomalyListRequest) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock WorkScheduleService ──

type mockWorkScheduleService struct {
	params importCapture
	result *dto.ImportScheduleResponse
	err    error
}

// importCapture 记录最近一次调用的参数
type importCapture struct {
	service.ImportScheduleParams
	body string
	url  string
}

func (m *mockWorkScheduleService) ImportICS(_ context.Context, p service.ImportScheduleParams, r io.Reader) (*dto.ImportScheduleResponse, error) {
	b, _ := io.ReadAll(r)
	m.params = importCapture{ImportScheduleParams: p, body: string(b)}
	return m.result, m.err
}
func (m *mockWorkScheduleService) ImportICSFromURL(_ context.Context, p service.ImportScheduleParams, url string) (*dto.ImportScheduleResponse, error) {
	m.params = importCapture{ImportScheduleParams: p, url: url}
	return m.result, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("role", "admin")
	c.Set("company_id", "test-company-id")
}

const testAnomalyID = "0b8d6f2e-3c41-4a7e-9f15-6d2a8c9e1b47"

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// serve 注册单条路由（带认证上下文）并执行请求
func serve(method, pattern string, h gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := gin.New()
	r.Handle(method, pattern, func(c *gin.Context) {
		setAuth(c)
		h(c)
	})
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// AnomalyHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAnomalyHandler_Scan_Success(t *testing.T) {
	mock := &mockAnomalyService{scanResult: &dto.ScanResult{ScannedEntries: 10, TotalAnomalies: 1, NewAnomalies: []dto.AnomalyResponse{}}}
	h := NewAnomalyHandler(mock)

	req := httptest.NewRequest("POST", "/anomalies/scan", jsonBody(dto.ScanRequest{ReferenceDate: "2026-03-16"}))
	req.Header.Set("Content-Type", "application/json")
	w := serve("POST", "/anomalies/scan", h.Scan, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.scanCompany != "test-company-id" {
		t.Errorf("expected scan of token company, got %s", mock.scanCompany)
	}
	if !mock.scanRefDate.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected reference date %s", mock.scanRefDate)
	}
}

func TestAnomalyHandler_Scan_EmptyBody(t *testing.T) {
	mock := &mockAnomalyService{scanResult: &dto.ScanResult{NewAnomalies: []dto.AnomalyResponse{}}}
	h := NewAnomalyHandler(mock)

	w := serve("POST", "/anomalies/scan", h.Scan, httptest.NewRequest("POST", "/anomalies/scan", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !mock.scanRefDate.IsZero() {
		t.Error("expected zero reference date for empty body")
	}
}

func TestAnomalyHandler_Scan_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   interface{}
		err    error
		status int
		code   int
	}{
		{"other company", dto.ScanRequest{CompanyID: "7d3f7c1e-5b0b-4c55-9d7e-2f4f5b2b8a11"}, nil, http.StatusForbidden, 10003},
		{"bad date", dto.ScanRequest{ReferenceDate: "16/03/2026"}, nil, http.StatusBadRequest, 14000},
		{"in progress", dto.ScanRequest{}, service.ErrScanInProgress, http.StatusConflict, 14006},
		{"internal", dto.ScanRequest{}, errors.New("db down"), http.StatusInternalServerError, 50000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := NewAnomalyHandler(&mockAnomalyService{scanErr: c.err, scanResult: &dto.ScanResult{}})
			req := httptest.NewRequest("POST", "/anomalies/scan", jsonBody(c.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve("POST", "/anomalies/scan", h.Scan, req)

			if w.Code != c.status {
				t.Errorf("expected %d, got %d", c.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != c.code {
				t.Errorf("expected code %d, got %d", c.code, resp.Code)
			}
		})
	}
}

func TestAnomalyHandler_ListAnomalies(t *testing.T) {
	mock := &mockAnomalyService{listResult: []dto.AnomalyResponse{{AnomalyID: "a-1"}}}
	h := NewAnomalyHandler(mock)

	w := serve("GET", "/anomalies", h.ListAnomalies,
		httptest.NewRequest("GET", "/anomalies?employee_id=emp-1&status=pending_review", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.listReq == nil || mock.listReq.EmployeeID != "emp-1" || mock.listReq.Status != model.AnomalyStatusPendingReview {
		t.Errorf("query not bound: %+v", mock.listReq)
	}
}

func TestAnomalyHandler_ListAnomalies_Paged(t *testing.T) {
	list := make([]dto.AnomalyResponse, 5)
	for i := range list {
		list[i] = dto.AnomalyResponse{AnomalyID: fmt.Sprintf("a-%d", i+1)}
	}
	h := NewAnomalyHandler(&mockAnomalyService{listResult: list})

	w := serve("GET", "/anomalies", h.ListAnomalies, httptest.NewRequest("GET", "/anomalies?page=2&page_size=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data struct {
			List       []dto.AnomalyResponse `json:"list"`
			Pagination response.Pagination   `json:"pagination"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Data.List) != 2 || resp.Data.List[0].AnomalyID != "a-3" {
		t.Errorf("unexpected page: %+v", resp.Data.List)
	}
	if resp.Data.Pagination.Total != 5 || resp.Data.Pagination.TotalPages != 3 {
		t.Errorf("unexpected pagination: %+v", resp.Data.Pagination)
	}

	// 超出范围的页返回空列表
	w = serve("GET", "/anomalies", h.ListAnomalies, httptest.NewRequest("GET", "/anomalies?page=9&page_size=2", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"list":[]`) {
		t.Errorf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
}

func TestAnomalyHandler_ListAnomalies_BadStatus(t *testing.T) {
	h := NewAnomalyHandler(&mockAnomalyService{})

	w := serve("GET", "/anomalies", h.ListAnomalies, httptest.NewRequest("GET", "/anomalies?status=unknown", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnomalyHandler_GetSummary(t *testing.T) {
	mock := &mockAnomalyService{summaryResult: &dto.SummaryResponse{TotalAnomalies: 3, AvgReputation: 55.5}}
	h := NewAnomalyHandler(mock)

	w := serve("GET", "/anomalies/summary", h.GetSummary, httptest.NewRequest("GET", "/anomalies/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"avg_reputation":55.5`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestAnomalyHandler_ResolveAnomaly(t *testing.T) {
	mock := &mockAnomalyService{resolveResult: &dto.AnomalyResponse{AnomalyID: "a-1", Status: model.AnomalyStatusConfirmed}}
	h := NewAnomalyHandler(mock)

	req := httptest.NewRequest("POST", "/anomalies/"+testAnomalyID+"/resolve", jsonBody(dto.ResolveAnomalyRequest{Resolution: "confirmed"}))
	req.Header.Set("Content-Type", "application/json")
	w := serve("POST", "/anomalies/:id/resolve", h.ResolveAnomaly, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.resolvedBy != "test-user-id" {
		t.Errorf("resolver should come from token, got %s", mock.resolvedBy)
	}
	if mock.targetCompany != "test-company-id" || mock.targetID != testAnomalyID {
		t.Errorf("expected company and id from context, got %s/%s", mock.targetCompany, mock.targetID)
	}
}

func TestAnomalyHandler_MalformedIDIsNotFound(t *testing.T) {
	mock := &mockAnomalyService{}
	h := NewAnomalyHandler(mock)

	req := httptest.NewRequest("POST", "/anomalies/not-a-uuid/resolve", jsonBody(dto.ResolveAnomalyRequest{Resolution: "confirmed"}))
	req.Header.Set("Content-Type", "application/json")
	w := serve("POST", "/anomalies/:id/resolve", h.ResolveAnomaly, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 14004 {
		t.Errorf("expected code 14004, got %d", resp.Code)
	}

	req = httptest.NewRequest("PUT", "/anomalies/a-1/remediation", jsonBody(dto.RemediationRequest{Reference: "txn-1"}))
	req.Header.Set("Content-Type", "application/json")
	w = serve("PUT", "/anomalies/:id/remediation", h.AttachRemediation, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if mock.targetID != "" {
		t.Errorf("service should not be called, got id %s", mock.targetID)
	}
}

func TestAnomalyHandler_ResolveAnomaly_Errors(t *testing.T) {
	cases := []struct {
		name       string
		resolution string
		err        error
		status     int
		code       int
	}{
		{"invalid resolution", "approved", nil, http.StatusBadRequest, 14000},
		{"not found", "confirmed", service.ErrAnomalyNotFound, http.StatusNotFound, 14004},
		{"already resolved", "review_dismissed", service.ErrAnomalyAlreadyResolved, http.StatusConflict, 14005},
		{"concurrent update", "confirmed", pkgerrors.ErrOptimisticLock, http.StatusConflict, 14007},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := NewAnomalyHandler(&mockAnomalyService{resolveErr: c.err})
			req := httptest.NewRequest("POST", "/anomalies/"+testAnomalyID+"/resolve", jsonBody(dto.ResolveAnomalyRequest{Resolution: c.resolution}))
			req.Header.Set("Content-Type", "application/json")
			w := serve("POST", "/anomalies/:id/resolve", h.ResolveAnomaly, req)

			if w.Code != c.status {
				t.Errorf("expected %d, got %d", c.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != c.code {
				t.Errorf("expected code %d, got %d", c.code, resp.Code)
			}
		})
	}
}

func TestAnomalyHandler_AttachRemediation(t *testing.T) {
	ref := "txn-1"
	h := NewAnomalyHandler(&mockAnomalyService{attachResult: &dto.AnomalyResponse{AnomalyID: "a-1", RemediationReference: &ref}})

	req := httptest.NewRequest("PUT", "/anomalies/"+testAnomalyID+"/remediation", jsonBody(dto.RemediationRequest{Reference: ref}))
	req.Header.Set("Content-Type", "application/json")
	w := serve("PUT", "/anomalies/:id/remediation", h.AttachRemediation, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("PUT", "/anomalies/"+testAnomalyID+"/remediation", jsonBody(map[string]string{}))
	req.Header.Set("Content-Type", "application/json")
	w = serve("PUT", "/anomalies/:id/remediation", h.AttachRemediation, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing reference, got %d", w.Code)
	}
}

func TestAnomalyHandler_MissingCompany(t *testing.T) {
	h := NewAnomalyHandler(&mockAnomalyService{})

	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/anomalies", h.ListAnomalies)
	r.ServeHTTP(w, httptest.NewRequest("GET", "/anomalies", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ReputationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestReputationHandler_GetReputations(t *testing.T) {
	mock := &mockReputationService{}
	h := NewReputationHandler(mock)

	w := serve("GET", "/reputations", h.GetReputations, httptest.NewRequest("GET", "/reputations?employee_ids=a,%20b,,c", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(mock.getManyIDs) != 3 || mock.getManyIDs[1] != "b" {
		t.Errorf("ids not parsed: %v", mock.getManyIDs)
	}
	if mock.companyID != "test-company-id" {
		t.Errorf("expected company from context, got %s", mock.companyID)
	}

	w = serve("GET", "/reputations", h.GetReputations, httptest.NewRequest("GET", "/reputations", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty ids, got %d", w.Code)
	}
}

func TestReputationHandler_ImportSnapshot(t *testing.T) {
	mock := &mockReputationService{importResult: &dto.ReputationImportResponse{ImportedCount: 1}}
	h := NewReputationHandler(mock)

	body := dto.ReputationImportRequest{Reputations: []dto.ReputationSnapshotItem{{EmployeeID: "emp-1", Score: 80}}}
	req := httptest.NewRequest("POST", "/reputations/import", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve("POST", "/reputations/import", h.ImportSnapshot, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	bad := dto.ReputationImportRequest{Reputations: []dto.ReputationSnapshotItem{{EmployeeID: "emp-1", Score: 101}}}
	req = httptest.NewRequest("POST", "/reputations/import", jsonBody(bad))
	req.Header.Set("Content-Type", "application/json")
	w = serve("POST", "/reputations/import", h.ImportSnapshot, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range score, got %d", w.Code)
	}
}

func TestReputationHandler_ImportSnapshot_ForeignEmployee(t *testing.T) {
	mock := &mockReputationService{importErr: fmt.Errorf("%w: emp-x", service.ErrReputationForeignEmployee)}
	h := NewReputationHandler(mock)

	body := dto.ReputationImportRequest{Reputations: []dto.ReputationSnapshotItem{{EmployeeID: "emp-x", Score: 100}}}
	req := httptest.NewRequest("POST", "/reputations/import", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve("POST", "/reputations/import", h.ImportSnapshot, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13002 {
		t.Errorf("expected code 13002, got %d", resp.Code)
	}
	if mock.companyID != "test-company-id" {
		t.Errorf("expected company from context, got %s", mock.companyID)
	}
}

func TestReputationHandler_ExportSnapshot(t *testing.T) {
	h := NewReputationHandler(&mockReputationService{})

	w := serve("GET", "/reputations/export", h.ExportSnapshot, httptest.NewRequest("GET", "/reputations/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"employee_id":"emp-1"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportAnomalies_Success(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("xlsx-content"), filename: "anomaly_ledger_20260316.xlsx"}
	h := NewExportHandler(mock)

	w := serve("GET", "/anomalies/export", h.ExportAnomalies, httptest.NewRequest("GET", "/anomalies/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "anomaly_ledger_20260316.xlsx") {
		t.Errorf("unexpected Content-Disposition: %s", w.Header().Get("Content-Disposition"))
	}
	if w.Body.String() != "xlsx-content" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestExportHandler_ExportAnomalies_Empty(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportNoAnomalies})

	w := serve("GET", "/anomalies/export", h.ExportAnomalies, httptest.NewRequest("GET", "/anomalies/export", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 16101 {
		t.Errorf("expected code 16101, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// WorkScheduleHandler Tests
// ═══════════════════════════════════════════════════════════

func multipartRequest(fields map[string]string, fileContent string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileContent != "" {
		fw, _ := mw.CreateFormFile("file", "shifts.ics")
		fw.Write([]byte(fileContent))
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/work-schedules/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestWorkScheduleHandler_ImportICS_File(t *testing.T) {
	mock := &mockWorkScheduleService{result: &dto.ImportScheduleResponse{ScheduleID: "ws-1", StartTime: "09:00"}}
	h := NewWorkScheduleHandler(mock)

	req := multipartRequest(map[string]string{"employee_id": "emp-1", "timezone": "Asia/Shanghai"}, "BEGIN:VCALENDAR")
	w := serve("POST", "/work-schedules/import", h.ImportICS, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	p := mock.params
	if p.CompanyID != "test-company-id" || p.EmployeeID != "emp-1" || p.Timezone != "Asia/Shanghai" || p.body != "BEGIN:VCALENDAR" {
		t.Errorf("params not forwarded: %+v", p)
	}
}

func TestWorkScheduleHandler_ImportICS_URL(t *testing.T) {
	mock := &mockWorkScheduleService{result: &dto.ImportScheduleResponse{ScheduleID: "ws-1"}}
	h := NewWorkScheduleHandler(mock)

	req := multipartRequest(map[string]string{"employee_id": "emp-1", "url": "webcal://example.com/shifts.ics"}, "")
	w := serve("POST", "/work-schedules/import", h.ImportICS, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if mock.params.url != "webcal://example.com/shifts.ics" {
		t.Errorf("url not forwarded: %s", mock.params.url)
	}
}

func TestWorkScheduleHandler_ImportICS_Errors(t *testing.T) {
	h := NewWorkScheduleHandler(&mockWorkScheduleService{})
	w := serve("POST", "/work-schedules/import", h.ImportICS, multipartRequest(map[string]string{}, "x"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing employee_id, got %d", w.Code)
	}

	w = serve("POST", "/work-schedules/import", h.ImportICS, multipartRequest(map[string]string{"employee_id": "emp-1"}, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file or url, got %d", w.Code)
	}

	h = NewWorkScheduleHandler(&mockWorkScheduleService{err: service.ErrEmployeeNotFound})
	w = serve("POST", "/work-schedules/import", h.ImportICS, multipartRequest(map[string]string{"employee_id": "emp-x"}, "x"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 12004 {
		t.Errorf("expected code 12004, got %d", resp.Code)
	}
}

func TestWorkScheduleHandler_ImportICS_InvalidCarriesDetails(t *testing.T) {
	err := fmt.Errorf("%w: %v", service.ErrScheduleICSInvalid, errors.New("ICS 中没有可用的班次事件"))
	h := NewWorkScheduleHandler(&mockWorkScheduleService{err: err})

	w := serve("POST", "/work-schedules/import", h.ImportICS, multipartRequest(map[string]string{"employee_id": "emp-1"}, "x"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 12001 {
		t.Errorf("expected code 12001, got %d", resp.Code)
	}
	if resp.Message != service.ErrScheduleICSInvalid.Error() || !strings.Contains(resp.Details, "没有可用的班次事件") {
		t.Errorf("unexpected message/details: %q / %q", resp.Message, resp.Details)
	}
}
