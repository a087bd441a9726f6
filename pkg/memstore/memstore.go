// Package memstore 线程安全的内存仓储，实现 repository 包的全部接口。
// 用于离线模拟（cmd/simulate）和无数据库的本地演示；进程退出即丢失。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"payguard/backend/internal/model"
	"payguard/backend/internal/repository"
	pkgerrors "payguard/backend/pkg/errors"
)

// Store 内存数据集
type Store struct {
	mu sync.RWMutex

	employees   map[string]model.Employee
	schedules   map[string]model.WorkSchedule
	entries     []model.TimeEntry
	cycles      []model.PayCycle
	anomalies   []model.AnomalyRecord // 追加顺序
	reputations map[string]model.Reputation
}

// New 创建空的内存数据集
func New() *Store {
	return &Store{
		employees:   make(map[string]model.Employee),
		schedules:   make(map[string]model.WorkSchedule),
		reputations: make(map[string]model.Reputation),
	}
}

// Repository 以 repository 聚合的形式暴露
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Employee:     employeeStore{s},
		WorkSchedule: scheduleStore{s},
		TimeEntry:    timeEntryStore{s},
		PayCycle:     payCycleStore{s},
		Anomaly:      anomalyStore{s},
		Reputation:   reputationStore{s},
	}
}

// ── 种子数据 ──

func (s *Store) AddEmployee(e model.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.EmployeeID] = e
}

func (s *Store) AddWorkSchedule(ws model.WorkSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[ws.ScheduleID] = ws
}

func (s *Store) AddTimeEntry(te model.TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, te)
}

func (s *Store) AddPayCycle(pc model.PayCycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, pc)
}

// ── Employee ──

type employeeStore struct{ s *Store }

func (r employeeStore) GetByID(_ context.Context, id string) (*model.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if e.ScheduleID != nil {
		if ws, ok := r.s.schedules[*e.ScheduleID]; ok {
			e.Schedule = &ws
		}
	}
	return &e, nil
}

func (r employeeStore) ListByCompany(_ context.Context, companyID string) ([]model.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.Employee
	for _, e := range r.s.employees {
		if e.CompanyID == companyID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r employeeStore) AssignSchedule(_ context.Context, employeeID, scheduleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := scheduleID
	e.ScheduleID = &id
	e.UpdatedAt = time.Now()
	r.s.employees[employeeID] = e
	return nil
}

// ── WorkSchedule ──

type scheduleStore struct{ s *Store }

func (r scheduleStore) Create(_ context.Context, ws *model.WorkSchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.schedules[ws.ScheduleID] = *ws
	return nil
}

func (r scheduleStore) ListByCompany(_ context.Context, companyID string) ([]model.WorkSchedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.WorkSchedule
	for _, ws := range r.s.schedules {
		if ws.CompanyID == companyID {
			list = append(list, ws)
		}
	}
	return list, nil
}

// ── TimeEntry ──

type timeEntryStore struct{ s *Store }

func (r timeEntryStore) ListByCompany(_ context.Context, companyID string, since *time.Time) ([]model.TimeEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.TimeEntry
	for _, te := range r.s.entries {
		if te.CompanyID != companyID {
			continue
		}
		if since != nil && te.EntryDate.Before(*since) {
			continue
		}
		list = append(list, te)
	}
	return list, nil
}

// ── PayCycle ──

type payCycleStore struct{ s *Store }

func (r payCycleStore) ListByCompany(_ context.Context, companyID string) ([]model.PayCycle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.PayCycle
	for _, pc := range r.s.cycles {
		if pc.CompanyID == companyID {
			list = append(list, pc)
		}
	}
	return list, nil
}

// ── Anomaly ──

type anomalyStore struct{ s *Store }

func (r anomalyStore) BatchCreate(_ context.Context, records []model.AnomalyRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, rec := range records {
		if rec.Version == 0 {
			rec.Version = 1
		}
		rec.CreatedAt, rec.UpdatedAt = now, now
		rec.Reasons = append(model.StringArray(nil), rec.Reasons...)
		r.s.anomalies = append(r.s.anomalies, rec)
	}
	return nil
}

func (r anomalyStore) GetByID(_ context.Context, id string) (*model.AnomalyRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rec := range r.s.anomalies {
		if rec.AnomalyID == id {
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r anomalyStore) List(_ context.Context, filter repository.AnomalyFilter) ([]model.AnomalyRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.AnomalyRecord
	// 倒序遍历，同一时间检出的记录保持后写在前
	for i := len(r.s.anomalies) - 1; i >= 0; i-- {
		rec := r.s.anomalies[i]
		if filter.CompanyID != "" && rec.CompanyID != filter.CompanyID {
			continue
		}
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		list = append(list, rec)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].DetectedAt.After(list[j].DetectedAt)
	})
	return list, nil
}

func (r anomalyStore) Update(_ context.Context, record *model.AnomalyRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.anomalies {
		cur := &r.s.anomalies[i]
		if cur.AnomalyID != record.AnomalyID {
			continue
		}
		if cur.Version != record.Version {
			return pkgerrors.ErrOptimisticLock
		}
		cur.Status = record.Status
		cur.ResolvedAt = record.ResolvedAt
		cur.ResolvedBy = record.ResolvedBy
		cur.RemediationReference = record.RemediationReference
		cur.Version++
		cur.UpdatedAt = time.Now()
		record.Version = cur.Version
		return nil
	}
	return pkgerrors.ErrOptimisticLock
}

// ── Reputation ──

type reputationStore struct{ s *Store }

func (r reputationStore) Get(_ context.Context, employeeID string) (*model.Reputation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rep, ok := r.s.reputations[employeeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rep, nil
}

func (r reputationStore) ListByIDs(_ context.Context, employeeIDs []string) ([]model.Reputation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []model.Reputation
	for _, id := range employeeIDs {
		if rep, ok := r.s.reputations[id]; ok {
			list = append(list, rep)
		}
	}
	return list, nil
}

func (r reputationStore) Save(_ context.Context, rep *model.Reputation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reputations[rep.EmployeeID] = *rep
	return nil
}

func (r reputationStore) SaveAll(_ context.Context, reps []model.Reputation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rep := range reps {
		r.s.reputations[rep.EmployeeID] = rep
	}
	return nil
}
