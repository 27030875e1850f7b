package apiclient

import (
	"encoding/json"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"iprescribe-console/internal/model"
)

// Login exchanges email and password for a credential. It never carries the
// stored credential and a 401 here does not invalidate the current session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginData, error) {
	var env model.Envelope[model.LoginData]
	err := c.doJSON(ctx, call{
		method: http.MethodPost,
		path:   c.loginPath,
		route:  c.loginPath,
		body:   model.LoginRequest{Email: email, Password: password},
		public: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	if env.Data.Token == "" {
		return nil, ErrEmptyToken
	}
	return &env.Data, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var env model.Envelope[model.DashboardStats]
	err := c.doJSON(ctx, call{
		method: http.MethodGet,
		path:   "/admin/dashboard-stats",
		route:  "/admin/dashboard-stats",
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

type PatientsQuery struct {
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

func (q PatientsQuery) values() url.Values {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 10
	}
	if q.SortBy == "" {
		q.SortBy = "created_at"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	v.Set("sort_by", q.SortBy)
	v.Set("sort_order", q.SortOrder)
	return v
}

func (c *Client) Patients(ctx context.Context, q PatientsQuery) (*model.PatientPage, error) {
	var env model.Envelope[model.PatientPage]
	err := c.doJSON(ctx, call{
		method: http.MethodGet,
		path:   "/admin/patients",
		route:  "/admin/patients",
		query:  q.values(),
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) Patient(ctx context.Context, id int64) (*model.Patient, error) {
	var env model.Envelope[model.Patient]
	err := c.doJSON(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/admin/patients/%d", id),
		route:  "/admin/patients/{id}",
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdatePatientStatus returns the server's response body undecoded; its
// shape is defined by the server and may be any JSON value, or empty.
func (c *Client) UpdatePatientStatus(ctx context.Context, id int64, status string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.doJSON(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/admin/patients/%d/status", id),
		route:  "/admin/patients/{id}/status",
		body:   model.PatientStatusUpdate{Status: status},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
