package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInstrument_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Instrument())
	r.GET("/dashboard/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/dashboard/patients/:id", "200"))
	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/patients/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/dashboard/patients/:id", "200"))
	require.Equal(t, 2.0, after-before)

	before = testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))-before)
}

func TestObserveUpstream_TransportFailure(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues(http.MethodGet, "/admin/patients", "error"))
	ObserveUpstream(http.MethodGet, "/admin/patients", 0, 10*time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues(http.MethodGet, "/admin/patients", "error"))-before)
}

func TestRegister_IsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Register()
		Register()
	})

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
