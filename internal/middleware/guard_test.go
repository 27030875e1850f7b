package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/model"
	"iprescribe-console/internal/session"
	"iprescribe-console/internal/store"
)

func TestDecide_Order(t *testing.T) {
	admin := &model.Identity{ID: 1, Roles: []model.Role{{Slug: model.RoleSlugAdmin}}}
	doctor := &model.Identity{ID: 2, Roles: []model.Role{{Slug: "doctor"}}}

	tests := []struct {
		name         string
		state        session.State
		requireAdmin bool
		want         Decision
	}{
		{"loading wins over everything", session.State{IsLoading: true, Credential: "t", Identity: admin, IsAuthenticated: true, IsAdmin: true}, true, Pending},
		{"loading without session", session.State{IsLoading: true}, false, Pending},
		{"no session", session.State{}, false, DeniedUnauthenticated},
		{"no session on admin route", session.State{}, true, DeniedUnauthenticated},
		{"non-admin on admin route", session.State{Credential: "t", Identity: doctor, IsAuthenticated: true}, true, DeniedUnauthorized},
		{"non-admin on open route", session.State{Credential: "t", Identity: doctor, IsAuthenticated: true}, false, Allowed},
		{"admin", session.State{Credential: "t", Identity: admin, IsAuthenticated: true, IsAdmin: true}, true, Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.state, tt.requireAdmin); got != tt.want {
				t.Fatalf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newGuardedRouter(m *session.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(session.Provide(m))
	r.GET("/dashboard", RequireSession(true), func(c *gin.Context) {
		st, ok := StateFromContext(c)
		if !ok || !st.IsAdmin {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, "dashboard")
	})
	return r
}

func TestRequireSession_Responses(t *testing.T) {
	pending := session.New(store.New(), nil)

	anonymous := session.New(store.New(), nil)
	anonymous.Init()

	doctor := session.New(store.New(), nil)
	doctor.Init()
	if err := doctor.Login(context.Background(), "tok", model.Identity{ID: 2, Roles: []model.Role{{Slug: "doctor"}}}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	admin := session.New(store.New(), nil)
	admin.Init()
	if err := admin.Login(context.Background(), "tok", model.Identity{ID: 1, Roles: []model.Role{{Slug: model.RoleSlugAdmin}}}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	tests := []struct {
		name     string
		manager  *session.Manager
		code     int
		location string
	}{
		{"pending", pending, http.StatusServiceUnavailable, ""},
		{"anonymous", anonymous, http.StatusSeeOther, "/login"},
		{"doctor", doctor, http.StatusSeeOther, "/unauthorized"},
		{"admin", admin, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newGuardedRouter(tt.manager).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.location {
				t.Fatalf("expected Location %q, got %q", tt.location, got)
			}
			if tt.code == http.StatusServiceUnavailable && w.Header().Get("Retry-After") != "1" {
				t.Fatalf("expected Retry-After on pending response")
			}
		})
	}
}
