package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"clinicremind/internal/external"
	"clinicremind/internal/types"
)

// memAppointments is an in-memory appointment store with the same claim
// semantics as the SQL repository.
type memAppointments struct {
	mu      sync.Mutex
	appts   map[string]types.Appointment
	order   []string
	listErr map[string]error // by tenant id
	queries int
}

func newMemAppointments(appts ...types.Appointment) *memAppointments {
	m := &memAppointments{appts: make(map[string]types.Appointment), listErr: make(map[string]error)}
	for _, a := range appts {
		m.appts[a.ID] = a
		m.order = append(m.order, a.ID)
	}
	return m
}

func (m *memAppointments) get(id string) types.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id]
}

func (m *memAppointments) ListCandidates(_ context.Context, tenantID string, statuses []types.AppointmentStatus, from, to time.Time) ([]types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if err := m.listErr[tenantID]; err != nil {
		return nil, err
	}
	var out []types.Appointment
	for _, id := range m.order {
		a := m.appts[id]
		if a.TenantID != tenantID || !slices.Contains(statuses, a.Status) {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	return out, nil
}

func (m *memAppointments) ListFollowUpCandidates(_ context.Context, tenantID string, from, to time.Time) ([]types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if err := m.listErr[tenantID]; err != nil {
		return nil, err
	}
	var out []types.Appointment
	for _, id := range m.order {
		a := m.appts[id]
		if a.TenantID != tenantID || a.Status != types.StatusCompleted || a.FollowUpSentAt != nil {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	return out, nil
}

func (m *memAppointments) ClaimTier(_ context.Context, id string, tier types.Tier, at, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return false, nil
	}
	if prev, sent := a.TierSentAt[tier]; sent && !prev.Before(cutoff) {
		return false, nil
	}
	a = cloneAppointment(a)
	if a.TierSentAt == nil {
		a.TierSentAt = make(map[types.Tier]time.Time)
	}
	a.TierSentAt[tier] = at
	a.ReminderSent = true
	a.ReminderSentAt = &at
	m.appts[id] = a
	return true, nil
}

func (m *memAppointments) ReleaseTier(_ context.Context, id string, tier types.Tier, at time.Time, prev types.DedupSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := cloneAppointment(m.appts[id])
	if cur, ok := a.TierSentAt[tier]; !ok || !cur.Equal(at) {
		return nil
	}
	if prev.TierSentAt == nil {
		delete(a.TierSentAt, tier)
	} else {
		a.TierSentAt[tier] = *prev.TierSentAt
	}
	a.ReminderSent = prev.ReminderSent
	a.ReminderSentAt = prev.ReminderSentAt
	m.appts[id] = a
	return nil
}

func (m *memAppointments) ClaimFollowUp(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	if a.FollowUpSentAt != nil {
		return false, nil
	}
	a.FollowUpSentAt = &at
	m.appts[id] = a
	return true, nil
}

func (m *memAppointments) ReleaseFollowUp(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	if a.FollowUpSentAt != nil && a.FollowUpSentAt.Equal(at) {
		a.FollowUpSentAt = nil
		m.appts[id] = a
	}
	return nil
}

func cloneAppointment(a types.Appointment) types.Appointment {
	if a.TierSentAt != nil {
		m := make(map[types.Tier]time.Time, len(a.TierSentAt))
		for k, v := range a.TierSentAt {
			m[k] = v
		}
		a.TierSentAt = m
	}
	return a
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []types.SendInput
	err    error
	keyErr error
	panic  bool
}

func (s *fakeSender) CheckCredentials(types.SecretString) error {
	return s.keyErr
}

func (s *fakeSender) Send(_ context.Context, in types.SendInput) (string, error) {
	if s.panic {
		panic("provider client bug")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, in)
	return "wamid." + in.Recipient, nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeSenders map[types.MessagingProvider]external.MessageSender

func (f fakeSenders) Sender(p types.MessagingProvider) (external.MessageSender, bool) {
	s, ok := f[p]
	return s, ok
}

type memMessageLog struct {
	mu   sync.Mutex
	msgs []types.OutboundMessage
	err  error
}

func (l *memMessageLog) Insert(_ context.Context, m *types.OutboundMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.msgs = append(l.msgs, *m)
	return nil
}

type fakeTenants struct {
	tenants []types.Tenant
	err     error
}

func (f *fakeTenants) ListReminderTenants(context.Context) ([]types.Tenant, error) {
	return f.tenants, f.err
}

type fakeJobs struct {
	mu       sync.Mutex
	started  []string
	finished []string
	items    int
	startErr error
}

func (j *fakeJobs) Start(_ context.Context, _ string, runID string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.startErr != nil {
		return 0, j.startErr
	}
	j.started = append(j.started, runID)
	return int64(len(j.started)), nil
}

func (j *fakeJobs) Finish(_ context.Context, _ int64, status string, items int, _ error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, status)
	j.items = items
	return nil
}

type recordedMetrics struct {
	mu       sync.Mutex
	runs     []*types.RunReport
	failures []types.ErrorCode
}

func (m *recordedMetrics) RecordRun(_ context.Context, r *types.RunReport, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
}

func (m *recordedMetrics) RecordSendFailure(_ context.Context, _ types.MessagingProvider, code types.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, code)
}
