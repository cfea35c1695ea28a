package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu         sync.Mutex
	seq        int
	busy       bool
	employees  map[string]Employee
	inactive   map[string]bool
	periods    map[string]Period
	attendance map[string]map[string]Attendance
	deductions map[string][]AdHocDeduction
	results    map[string][]StoredResult
	payslips   map[string]Payslip
}

func newMemStore() *memStore {
	return &memStore{
		employees:  map[string]Employee{},
		inactive:   map[string]bool{},
		periods:    map[string]Period{},
		attendance: map[string]map[string]Attendance{},
		deductions: map[string][]AdHocDeduction{},
		results:    map[string][]StoredResult{},
		payslips:   map[string]Payslip{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) CreateEmployee(_ context.Context, _ string, employee Employee) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.employees {
		if e.EmployeeNumber == employee.EmployeeNumber {
			return "", ErrEmployeeExists
		}
	}
	employee.ID = s.nextID("emp")
	s.employees[employee.ID] = employee
	return employee.ID, nil
}

func (s *memStore) CountEmployees(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.employees), nil
}

func (s *memStore) ListEmployees(_ context.Context, _ string, limit, offset int) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.sortedEmployees(), limit, offset), nil
}

func (s *memStore) sortedEmployees() []Employee {
	out := make([]Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func (s *memStore) CreatePeriod(_ context.Context, _ string, in PeriodInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.periods {
		if p.Year == in.Year && p.Month == in.Month && p.Sequence == in.Sequence {
			return "", ErrPeriodExists
		}
	}
	id := s.nextID("period")
	s.periods[id] = Period{
		ID:          id,
		Year:        in.Year,
		Month:       in.Month,
		Sequence:    in.Sequence,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		PayDate:     in.PayDate,
		WorkingDays: in.WorkingDays,
		Status:      PeriodStatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (s *memStore) CountPeriods(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.periods), nil
}

func (s *memStore) ListPeriods(_ context.Context, _ string, limit, offset int) ([]Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label() > out[j].Label() })
	return page(out, limit, offset), nil
}

func (s *memStore) GetPeriod(_ context.Context, _ string, periodID string) (Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return p, nil
}

func (s *memStore) ListResults(_ context.Context, _ string, periodID string) ([]StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredResult{}, s.results[periodID]...), nil
}

func (s *memStore) GetResult(_ context.Context, _ string, periodID, employeeID string) (StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results[periodID] {
		if r.EmployeeID == employeeID {
			return r, nil
		}
	}
	return StoredResult{}, ErrResultNotFound
}

func (s *memStore) GetPayslip(_ context.Context, _ string, payslipID string) (Payslip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payslips[payslipID]
	if !ok {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, nil
}

func (s *memStore) UpdatePayslipFile(_ context.Context, payslipID, fileURL string, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payslips[payslipID]
	if !ok {
		return ErrPayslipNotFound
	}
	p.FileURL = fileURL
	p.Encrypted = encrypted
	s.payslips[payslipID] = p
	return nil
}

func (s *memStore) WithPeriodLock(_ context.Context, _ string, periodID string, fn func(PeriodTx) error) error {
	s.mu.Lock()
	busy := s.busy
	s.mu.Unlock()
	if busy {
		return ErrRunInProgress
	}
	return fn(&memTx{s: s, periodID: periodID})
}

type memTx struct {
	s        *memStore
	periodID string
}

func (t *memTx) Period(ctx context.Context) (Period, error) {
	return t.s.GetPeriod(ctx, "", t.periodID)
}

func (t *memTx) SetStatus(_ context.Context, status string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.periods[t.periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	p.Status = status
	p.FinalizedAt = nil
	if status == PeriodStatusFinalized {
		now := time.Now().UTC()
		p.FinalizedAt = &now
	}
	t.s.periods[t.periodID] = p
	return nil
}

func (t *memTx) LoadRunInputs(_ context.Context) (RunInputs, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.periods[t.periodID]
	if !ok {
		return RunInputs{}, ErrPeriodNotFound
	}
	in := RunInputs{Period: p, Attendance: map[string]Attendance{}, Deductions: map[string][]AdHocDeduction{}}
	for _, e := range t.s.sortedEmployees() {
		if !t.s.inactive[e.ID] {
			in.Employees = append(in.Employees, e)
		}
	}
	for id, a := range t.s.attendance[t.periodID] {
		in.Attendance[id] = a
	}
	for _, d := range t.s.deductions[t.periodID] {
		in.Deductions[d.EmployeeID] = append(in.Deductions[d.EmployeeID], d)
	}
	return in, nil
}

func (t *memTx) ReplaceResults(_ context.Context, results []StoredResult) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.results[t.periodID] = append([]StoredResult{}, results...)
	return nil
}

func (t *memTx) CountComputed(_ context.Context) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, r := range t.s.results[t.periodID] {
		if r.Status == ResultStatusComputed {
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpsertAttendance(_ context.Context, a Attendance) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.employees[a.EmployeeID]; !ok {
		return ErrEmployeeNotFound
	}
	if t.s.attendance[t.periodID] == nil {
		t.s.attendance[t.periodID] = map[string]Attendance{}
	}
	t.s.attendance[t.periodID][a.EmployeeID] = a
	return nil
}

func (t *memTx) CreateDeduction(_ context.Context, d AdHocDeduction) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.employees[d.EmployeeID]; !ok {
		return "", ErrEmployeeNotFound
	}
	d.ID = t.s.nextID("ded")
	t.s.deductions[t.periodID] = append(t.s.deductions[t.periodID], d)
	return d.ID, nil
}

func (t *memTx) CreatePayslips(_ context.Context) ([]Payslip, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	existing := map[string]bool{}
	for _, p := range t.s.payslips {
		if p.PeriodID == t.periodID {
			existing[p.EmployeeID] = true
		}
	}
	for _, r := range t.s.results[t.periodID] {
		if r.Status != ResultStatusComputed || existing[r.EmployeeID] {
			continue
		}
		id := t.s.nextID("slip")
		t.s.payslips[id] = Payslip{ID: id, PeriodID: t.periodID, EmployeeID: r.EmployeeID, CreatedAt: time.Now().UTC()}
	}
	var out []Payslip
	for _, p := range t.s.payslips {
		if p.PeriodID == t.periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) DeleteResults(_ context.Context) ([]string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	delete(t.s.results, t.periodID)
	var files []string
	for id, p := range t.s.payslips {
		if p.PeriodID == t.periodID {
			if p.FileURL != "" {
				files = append(files, p.FileURL)
			}
			delete(t.s.payslips, id)
		}
	}
	return files, nil
}
