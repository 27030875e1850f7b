package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"iprescribe-console/internal/auth"
	"iprescribe-console/internal/model"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New(Options{TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}})
	return s, s.Router()
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/login", "", model.LoginRequest{Email: email, Password: "password"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env model.Envelope[model.LoginData]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "Bearer", env.Data.TokenType)
	require.NotEmpty(t, env.Data.Token)
	return env.Data.Token
}

func TestLogin(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodPost, "/api/v1/login", "", model.LoginRequest{Email: "admin@iprescribe.online", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid credentials")

	w = do(r, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.NotEmpty(t, login(t, r, "admin@iprescribe.online"))
}

func TestAdminEndpointsRequireAdminToken(t *testing.T) {
	_, r := newTestServer(t)

	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/admin/dashboard-stats", "", nil).Code)

	doctor := login(t, r, "doctor@iprescribe.online")
	require.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/admin/dashboard-stats", doctor, nil).Code)

	admin := login(t, r, "admin@iprescribe.online")
	w := do(r, http.MethodGet, "/api/v1/admin/dashboard-stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var env model.Envelope[model.DashboardStats]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 25, env.Data.Patients.Total)
	require.NotEmpty(t, env.Data.TopSpecialities)
}

func TestRevokeAll_RejectsIssuedTokens(t *testing.T) {
	s, r := newTestServer(t)
	admin := login(t, r, "admin@iprescribe.online")

	s.RevokeAll()
	w := do(r, http.MethodGet, "/api/v1/admin/patients", admin, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Unauthenticated.")

	fresh := login(t, r, "admin@iprescribe.online")
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/admin/patients", fresh, nil).Code)
}

func TestListPatients_PaginatesNewestFirst(t *testing.T) {
	_, r := newTestServer(t)
	admin := login(t, r, "admin@iprescribe.online")

	w := do(r, http.MethodGet, "/api/v1/admin/patients?page=3&per_page=10&sort_by=created_at&sort_order=desc", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var env model.Envelope[model.PatientPage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 3, env.Data.CurrentPage)
	require.Equal(t, 3, env.Data.LastPage)
	require.Equal(t, 25, env.Data.Total)
	require.Len(t, env.Data.Data, 5)

	w = do(r, http.MethodGet, "/api/v1/admin/patients", admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, int64(1), env.Data.Data[0].ID)
	require.Greater(t, env.Data.Data[0].CreatedAt, env.Data.Data[1].CreatedAt)
}

func TestPatientStatusUpdate(t *testing.T) {
	_, r := newTestServer(t)
	admin := login(t, r, "admin@iprescribe.online")

	require.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/admin/patients/999", admin, nil).Code)
	require.Equal(t, http.StatusUnprocessableEntity,
		do(r, http.MethodPut, "/api/v1/admin/patients/3/status", admin, model.PatientStatusUpdate{Status: "deleted"}).Code)

	w := do(r, http.MethodPut, "/api/v1/admin/patients/3/status", admin, model.PatientStatusUpdate{Status: "suspended"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/admin/patients/3", admin, nil)
	var env model.Envelope[model.Patient]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "suspended", env.Data.Status)
}
