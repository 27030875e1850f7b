package session

import "github.com/gin-gonic/gin"

const managerContextKey = "session.manager"

// Provide makes m available to every handler after it in the chain.
func Provide(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(managerContextKey, m)
		c.Next()
	}
}

// From returns the manager installed by Provide. Calling it on a route
// without Provide is a wiring bug and panics.
func From(c *gin.Context) *Manager {
	v, ok := c.Get(managerContextKey)
	m, _ := v.(*Manager)
	if !ok || m == nil {
		panic("session: Manager not provided; register session.Provide")
	}
	return m
}
