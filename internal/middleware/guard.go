package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/session"
)

type Decision int

const (
	Pending Decision = iota
	DeniedUnauthenticated
	DeniedUnauthorized
	Allowed
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "PENDING"
	case DeniedUnauthenticated:
		return "DENIED_UNAUTHENTICATED"
	case DeniedUnauthorized:
		return "DENIED_UNAUTHORIZED"
	case Allowed:
		return "ALLOWED"
	default:
		return "UNKNOWN"
	}
}

const (
	RouteLogin        = "/login"
	RouteUnauthorized = "/unauthorized"
)

const stateContextKey = "session.state"

// Decide checks loading, then authentication, then authorization.
func Decide(st session.State, requireAdmin bool) Decision {
	if st.IsLoading {
		return Pending
	}
	if !st.IsAuthenticated {
		return DeniedUnauthenticated
	}
	if requireAdmin && !st.IsAdmin {
		return DeniedUnauthorized
	}
	return Allowed
}

const loadingPage = `<!doctype html><html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head><body><p>Loading...</p></body></html>`

// RequireSession guards a route group. The state it decided on is stored in
// the context for the handlers that follow.
func RequireSession(requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := session.From(c).State()

		switch Decide(st, requireAdmin) {
		case Pending:
			c.Header("Retry-After", "1")
			c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(loadingPage))
			c.Abort()
		case DeniedUnauthenticated:
			c.Redirect(http.StatusSeeOther, RouteLogin)
			c.Abort()
		case DeniedUnauthorized:
			c.Redirect(http.StatusSeeOther, RouteUnauthorized)
			c.Abort()
		default:
			c.Set(stateContextKey, st)
			c.Next()
		}
	}
}

// StateFromContext returns the session state RequireSession admitted.
func StateFromContext(c *gin.Context) (session.State, bool) {
	v, ok := c.Get(stateContextKey)
	if !ok {
		return session.State{}, false
	}
	st, ok := v.(session.State)
	return st, ok
}
