package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/session"
)

// PageCounter reports how many browser pages listen for navigation.
type PageCounter interface {
	Len() int
}

type VersionHandler struct {
	Version string
	Pages   PageCounter
}

// Health reports liveness plus enough session state to debug a stuck console
// without exposing the credential.
func (h *VersionHandler) Health(c *gin.Context) {
	st := session.From(c).State()
	body := gin.H{
		"ok":            true,
		"version":       h.Version,
		"loading":       st.IsLoading,
		"authenticated": st.IsAuthenticated,
		"admin":         st.IsAdmin,
	}
	if h.Pages != nil {
		body["pages"] = h.Pages.Len()
	}
	c.JSON(http.StatusOK, body)
}
