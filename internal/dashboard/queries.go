package dashboard

import (
	"encoding/json"
	"context"
	"time"

	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/model"
	"iprescribe-console/internal/query"
	"iprescribe-console/internal/session"
)

const (
	ResourceDashboardStats = "dashboardStats"
	ResourceRecentPatients = "recentPatients"
	ResourcePatientDetails = "patientDetails"
)

type API interface {
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	Patients(ctx context.Context, q apiclient.PatientsQuery) (*model.PatientPage, error)
	Patient(ctx context.Context, id int64) (*model.Patient, error)
	UpdatePatientStatus(ctx context.Context, id int64, status string) (json.RawMessage, error)
}

// SessionView is the part of the session the queries read.
type SessionView interface {
	IsAuthenticated() bool
}

// Queries are the console's reads and writes against the admin API, cached
// through the query client. Every read is disabled while signed out.
type Queries struct {
	api     API
	cache   *query.Client
	session SessionView
}

func New(api API, cache *query.Client, sess SessionView) *Queries {
	return &Queries{api: api, cache: cache, session: sess}
}

func (q *Queries) enabled() bool {
	return q.session.IsAuthenticated()
}

func (q *Queries) requireSession() error {
	if !q.session.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}

func (q *Queries) DashboardStats(ctx context.Context) query.Result[*model.DashboardStats] {
	return query.Fetch(ctx, q.cache, query.Query[*model.DashboardStats]{
		Key: query.NewKey(ResourceDashboardStats),
		Fn: func(ctx context.Context) (*model.DashboardStats, error) {
			if err := q.requireSession(); err != nil {
				return nil, err
			}
			return q.api.DashboardStats(ctx)
		},
		Enabled:   q.enabled,
		Retry:     1,
		StaleTime: 5 * time.Minute,
		GCTime:    10 * time.Minute,
	})
}

func (q *Queries) RecentPatients(ctx context.Context, page, perPage int) query.Result[*model.PatientPage] {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	return query.Fetch(ctx, q.cache, query.Query[*model.PatientPage]{
		Key: query.NewKey(ResourceRecentPatients, page, perPage),
		Fn: func(ctx context.Context) (*model.PatientPage, error) {
			if err := q.requireSession(); err != nil {
				return nil, err
			}
			return q.api.Patients(ctx, apiclient.PatientsQuery{Page: page, PerPage: perPage})
		},
		Enabled:   q.enabled,
		Retry:     1,
		StaleTime: 2 * time.Minute,
	})
}

func (q *Queries) PatientDetails(ctx context.Context, id int64) query.Result[*model.Patient] {
	return query.Fetch(ctx, q.cache, query.Query[*model.Patient]{
		Key: query.NewKey(ResourcePatientDetails, id),
		Fn: func(ctx context.Context) (*model.Patient, error) {
			if err := q.requireSession(); err != nil {
				return nil, err
			}
			return q.api.Patient(ctx, id)
		},
		Enabled: func() bool { return q.enabled() && id != 0 },
	})
}

// UpdatePatientStatus writes the status and marks the patient's cached
// detail and the patient lists stale.
func (q *Queries) UpdatePatientStatus(ctx context.Context, id int64, status string) (json.RawMessage, error) {
	m := query.Mutation[string, json.RawMessage]{
		Guard: q.requireSession,
		Fn: func(ctx context.Context, status string) (json.RawMessage, error) {
			return q.api.UpdatePatientStatus(ctx, id, status)
		},
	}
	out, err := m.Do(ctx, status)
	if err != nil {
		return nil, err
	}
	q.cache.Invalidate(query.NewKey(ResourcePatientDetails, id))
	q.cache.Invalidate(query.NewKey(ResourceRecentPatients))
	return out, nil
}
