// Package mockapi is a local stand-in for the iPrescribe REST API. It serves
// the endpoints the console consumes with fixture data and JWT bearer tokens.
package mockapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/auth"
	"iprescribe-console/internal/middleware"
	"iprescribe-console/internal/model"
)

var patientStatuses = map[string]bool{"active": true, "inactive": true, "suspended": true}

type Options struct {
	TokenConfig auth.TokenConfig
	// PatientCount is the size of the generated patient fixture.
	PatientCount int
	// LoginBurst is how many login attempts a client may make per minute.
	LoginBurst int
	Now        func() time.Time
}

type Server struct {
	mu       sync.RWMutex
	accounts []account
	patients []model.Patient
	issued   map[string]bool

	tokenCfg auth.TokenConfig
	limiter  *middleware.RateLimiter
	now      func() time.Time
}

func New(opts Options) *Server {
	if opts.PatientCount <= 0 {
		opts.PatientCount = 25
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		accounts: defaultAccounts(),
		patients: defaultPatients(opts.PatientCount, opts.Now()),
		issued:   make(map[string]bool),
		tokenCfg: opts.TokenConfig,
		limiter:  middleware.NewRateLimiter(opts.LoginBurst, time.Minute),
		now:      opts.Now,
	}
}

// RevokeAll rejects every token issued so far, as a server-side logout
// would.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti := range s.issued {
		s.issued[jti] = false
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	login := middleware.RateLimitMiddleware(s.limiter)
	v1.POST("/login", login, s.login)
	v1.POST("/auth/login", login, s.login)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireBearer(s.tokenCfg), s.requireLive, middleware.RequireRole(model.RoleSlugAdmin))
	admin.GET("/dashboard-stats", s.dashboardStats)
	admin.GET("/patients", s.listPatients)
	admin.GET("/patients/:id", s.getPatient)
	admin.PUT("/patients/:id/status", s.updatePatientStatus)

	return r
}

func envelope(c *gin.Context, status int, message string, data any) {
	body := gin.H{"message": message, "status": status}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func (s *Server) requireLive(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	s.mu.RLock()
	live := ok && s.issued[claims.ID]
	s.mu.RUnlock()
	if !live {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated.", "status": http.StatusUnauthorized})
		return
	}
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		envelope(c, http.StatusUnprocessableEntity, "The email and password fields are required.", nil)
		return
	}

	var found *account
	for i := range s.accounts {
		if strings.EqualFold(s.accounts[i].identity.Email, req.Email) && s.accounts[i].password == req.Password {
			found = &s.accounts[i]
			break
		}
	}
	if found == nil {
		envelope(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	roles := make([]string, 0, len(found.identity.Roles))
	for _, r := range found.identity.Roles {
		roles = append(roles, r.Slug)
	}
	token, err := auth.CreateToken(found.identity.ID, roles, s.tokenCfg)
	if err != nil {
		envelope(c, http.StatusInternalServerError, "Failed to issue token", nil)
		return
	}
	claims, err := auth.VerifyToken(token, s.tokenCfg)
	if err != nil {
		envelope(c, http.StatusInternalServerError, "Failed to issue token", nil)
		return
	}

	s.mu.Lock()
	s.issued[claims.ID] = true
	s.mu.Unlock()

	envelope(c, http.StatusOK, "Login successful", model.LoginData{
		User:      found.identity,
		Token:     token,
		TokenType: "Bearer",
	})
}

func (s *Server) dashboardStats(c *gin.Context) {
	s.mu.RLock()
	stats := statsFor(s.patients, s.now())
	s.mu.RUnlock()
	envelope(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) listPatients(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 10)
	sortBy := c.DefaultQuery("sort_by", "created_at")
	ascending := strings.EqualFold(c.DefaultQuery("sort_order", "desc"), "asc")

	s.mu.RLock()
	all := make([]model.Patient, len(s.patients))
	copy(all, s.patients)
	s.mu.RUnlock()

	less := func(a, b model.Patient) bool {
		if sortBy == "id" {
			return a.ID < b.ID
		}
		return a.CreatedAt < b.CreatedAt
	}
	sort.SliceStable(all, func(i, j int) bool {
		if ascending {
			return less(all[i], all[j])
		}
		return less(all[j], all[i])
	})

	total := len(all)
	lastPage := (total + perPage - 1) / perPage
	if lastPage == 0 {
		lastPage = 1
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	envelope(c, http.StatusOK, "Patients retrieved successfully", model.PatientPage{
		CurrentPage: page,
		Data:        all[start:end],
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	})
}

func (s *Server) findPatient(c *gin.Context) (int, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		envelope(c, http.StatusNotFound, "Patient not found", nil)
		return 0, false
	}
	for i := range s.patients {
		if s.patients[i].ID == id {
			return i, true
		}
	}
	envelope(c, http.StatusNotFound, "Patient not found", nil)
	return 0, false
}

func (s *Server) getPatient(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.findPatient(c)
	if !ok {
		return
	}
	envelope(c, http.StatusOK, "Patient retrieved successfully", s.patients[i])
}

func (s *Server) updatePatientStatus(c *gin.Context) {
	var req model.PatientStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil || !patientStatuses[req.Status] {
		envelope(c, http.StatusUnprocessableEntity, "The selected status is invalid.", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findPatient(c)
	if !ok {
		return
	}
	s.patients[i].Status = req.Status
	envelope(c, http.StatusOK, "Patient status updated successfully", s.patients[i])
}
