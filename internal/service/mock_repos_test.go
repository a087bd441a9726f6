package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
	pkgerrors "payguard/backend/pkg/errors"
	"payguard/backend/pkg/kafka"
	pkgredis "payguard/backend/pkg/redis"
)

var errMockDB = errors.New("mock db error")

// ── Mock EmployeeRepository ──

type mockEmployeeRepo struct {
	employees map[string]*model.Employee
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{employees: make(map[string]*model.Employee)}
}

func (m *mockEmployeeRepo) add(e model.Employee) {
	m.employees[e.EmployeeID] = &e
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id string) (*model.Employee, error) {
	if e, ok := m.employees[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEmployeeRepo) ListByCompany(_ context.Context, companyID string) ([]model.Employee, error) {
	var result []model.Employee
	for _, e := range m.employees {
		if e.CompanyID == companyID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

func (m *mockEmployeeRepo) AssignSchedule(_ context.Context, employeeID, scheduleID string) error {
	e, ok := m.employees[employeeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := scheduleID
	e.ScheduleID = &id
	return nil
}

// ── Mock WorkScheduleRepository ──

type mockWorkScheduleRepo struct {
	schedules map[string]*model.WorkSchedule
}

func newMockWorkScheduleRepo() *mockWorkScheduleRepo {
	return &mockWorkScheduleRepo{schedules: make(map[string]*model.WorkSchedule)}
}

func (m *mockWorkScheduleRepo) Create(_ context.Context, ws *model.WorkSchedule) error {
	m.schedules[ws.ScheduleID] = ws
	return nil
}

func (m *mockWorkScheduleRepo) ListByCompany(_ context.Context, companyID string) ([]model.WorkSchedule, error) {
	var result []model.WorkSchedule
	for _, ws := range m.schedules {
		if ws.CompanyID == companyID {
			result = append(result, *ws)
		}
	}
	return result, nil
}

// ── Mock TimeEntryRepository ──

type mockTimeEntryRepo struct {
	entries   []model.TimeEntry
	lastSince *time.Time
}

func newMockTimeEntryRepo() *mockTimeEntryRepo {
	return &mockTimeEntryRepo{}
}

func (m *mockTimeEntryRepo) ListByCompany(_ context.Context, companyID string, since *time.Time) ([]model.TimeEntry, error) {
	m.lastSince = since
	var result []model.TimeEntry
	for _, te := range m.entries {
		if te.CompanyID != companyID {
			continue
		}
		if since != nil && te.EntryDate.Before(*since) {
			continue
		}
		result = append(result, te)
	}
	return result, nil
}

// ── Mock PayCycleRepository ──

type mockPayCycleRepo struct {
	cycles []model.PayCycle
}

func newMockPayCycleRepo() *mockPayCycleRepo {
	return &mockPayCycleRepo{}
}

func (m *mockPayCycleRepo) ListByCompany(_ context.Context, companyID string) ([]model.PayCycle, error) {
	var result []model.PayCycle
	for _, pc := range m.cycles {
		if pc.CompanyID == companyID {
			result = append(result, pc)
		}
	}
	return result, nil
}

// ── Mock AnomalyRepository ──

type mockAnomalyRepo struct {
	records   []*model.AnomalyRecord
	createErr error
	updateErr error
}

func newMockAnomalyRepo() *mockAnomalyRepo {
	return &mockAnomalyRepo{}
}

func (m *mockAnomalyRepo) BatchCreate(_ context.Context, records []model.AnomalyRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	for i := range records {
		rec := records[i]
		if rec.Version == 0 {
			rec.Version = 1
		}
		m.records = append(m.records, &rec)
	}
	return nil
}

func (m *mockAnomalyRepo) GetByID(_ context.Context, id string) (*model.AnomalyRecord, error) {
	for _, r := range m.records {
		if r.AnomalyID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAnomalyRepo) List(_ context.Context, filter repository.AnomalyFilter) ([]model.AnomalyRecord, error) {
	var result []model.AnomalyRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if filter.CompanyID != "" && r.CompanyID != filter.CompanyID {
			continue
		}
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, *r)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].DetectedAt.After(result[j].DetectedAt) })
	return result, nil
}

func (m *mockAnomalyRepo) Update(_ context.Context, record *model.AnomalyRecord) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, r := range m.records {
		if r.AnomalyID != record.AnomalyID {
			continue
		}
		if r.Version != record.Version {
			return pkgerrors.ErrOptimisticLock
		}
		record.Version++
		cp := *record
		*r = cp
		return nil
	}
	return pkgerrors.ErrOptimisticLock
}

// byEmployee 某员工的全部记录（追加顺序）
func (m *mockAnomalyRepo) byEmployee(id string) []*model.AnomalyRecord {
	var result []*model.AnomalyRecord
	for _, r := range m.records {
		if r.EmployeeID == id {
			result = append(result, r)
		}
	}
	return result
}

// ── Mock ReputationRepository ──

type mockReputationRepo struct {
	reps    map[string]*model.Reputation
	saves   int
	saveErr error
}

func newMockReputationRepo() *mockReputationRepo {
	return &mockReputationRepo{reps: make(map[string]*model.Reputation)}
}

func (m *mockReputationRepo) Get(_ context.Context, employeeID string) (*model.Reputation, error) {
	if r, ok := m.reps[employeeID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReputationRepo) ListByIDs(_ context.Context, employeeIDs []string) ([]model.Reputation, error) {
	var result []model.Reputation
	for _, id := range employeeIDs {
		if r, ok := m.reps[id]; ok {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockReputationRepo) Save(_ context.Context, rep *model.Reputation) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *rep
	m.reps[rep.EmployeeID] = &cp
	m.saves++
	return nil
}

func (m *mockReputationRepo) SaveAll(_ context.Context, reps []model.Reputation) error {
	for i := range reps {
		cp := reps[i]
		m.reps[cp.EmployeeID] = &cp
		m.saves++
	}
	return nil
}

// score 当前分数；未创建时返回 -1
func (m *mockReputationRepo) score(id string) int {
	if r, ok := m.reps[id]; ok {
		return r.Score
	}
	return -1
}

// ── Mock Publisher ──

type mockPublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (p *mockPublisher) Publish(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

// ── Mock ScanLocker ──

type mockLocker struct {
	held       bool
	acquireErr error
	acquired   int
	released   int
}

func (l *mockLocker) AcquireScanLock(_ context.Context, _, _ string, _ time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	if l.held {
		return pkgredis.ErrLockHeld
	}
	l.acquired++
	return nil
}

func (l *mockLocker) ReleaseScanLock(_ context.Context, _, _ string) error {
	l.released++
	return nil
}

// ── 测试仓储聚合 ──

type mockRepos struct {
	employee   *mockEmployeeRepo
	schedule   *mockWorkScheduleRepo
	timeEntry  *mockTimeEntryRepo
	payCycle   *mockPayCycleRepo
	anomaly    *mockAnomalyRepo
	reputation *mockReputationRepo
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		employee:   newMockEmployeeRepo(),
		schedule:   newMockWorkScheduleRepo(),
		timeEntry:  newMockTimeEntryRepo(),
		payCycle:   newMockPayCycleRepo(),
		anomaly:    newMockAnomalyRepo(),
		reputation: newMockReputationRepo(),
	}
	repo := &repository.Repository{
		Employee:     m.employee,
		WorkSchedule: m.schedule,
		TimeEntry:    m.timeEntry,
		PayCycle:     m.payCycle,
		Anomaly:      m.anomaly,
		Reputation:   m.reputation,
	}
	return repo, m
}
