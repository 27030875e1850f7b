package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/dashboard"
	"iprescribe-console/internal/model"
	"iprescribe-console/internal/session"
	"iprescribe-console/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"landing", "login", "unauthorized", "dashboard", "patients", "patient"}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var patientStatuses = []string{"active", "inactive", "suspended"}

type ThemeStore interface {
	ThemeMode() string
	SetThemeMode(mode string) error
}

type trendCard struct {
	Label string
	Stat  model.TrendStat
}

var funcs = template.FuncMap{
	"message": apiclient.Message,
	"trend":   func(label string, st model.TrendStat) trendCard { return trendCard{Label: label, Stat: st} },
	"inc":     func(n int) int { return n + 1 },
	"dec":     func(n int) int { return n - 1 },
}

// Pages renders the console's HTML pages. Every handler expects the session
// manager in the request context, see session.Provide.
type Pages struct {
	themes    ThemeStore
	queries   *dashboard.Queries
	logger    *slog.Logger
	templates map[string]*template.Template
}

func NewPages(themes ThemeStore, queries *dashboard.Queries, logger *slog.Logger) (*Pages, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pages{
		themes:    themes,
		queries:   queries,
		logger:    logger,
		templates: make(map[string]*template.Template, len(pageNames)),
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

type pageData struct {
	Title   string
	Theme   string
	Error   string
	Session session.State
	Data    any
}

func (p *Pages) render(c *gin.Context, status int, name, title, errMsg string, data any) {
	var buf bytes.Buffer
	err := p.templates[name].ExecuteTemplate(&buf, "layout", pageData{
		Title:   title,
		Theme:   p.themes.ThemeMode(),
		Error:   errMsg,
		Session: session.From(c).State(),
		Data:    data,
	})
	if err != nil {
		p.logger.ErrorContext(c.Request.Context(), "render page", "page", name, "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// sessionEnded redirects to the login page when any of errs shows the
// session is gone.
func sessionEnded(c *gin.Context, errs ...error) bool {
	for _, err := range errs {
		if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, session.ErrNotAuthenticated) {
			c.Redirect(http.StatusSeeOther, session.RouteLogin)
			return true
		}
	}
	return false
}

func (p *Pages) Landing(c *gin.Context) {
	p.render(c, http.StatusOK, "landing", "Home", "", nil)
}

type loginForm struct {
	Email string
}

func (p *Pages) LoginForm(c *gin.Context) {
	if session.From(c).State().IsAuthenticated {
		c.Redirect(http.StatusSeeOther, session.RouteDashboard)
		return
	}
	p.render(c, http.StatusOK, "login", "Log in", "", loginForm{})
}

func (p *Pages) LoginSubmit(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	form := loginForm{Email: email}

	if !emailPattern.MatchString(email) || len(password) < 6 {
		p.render(c, http.StatusUnprocessableEntity, "login", "Log in",
			"Enter a valid email address and a password of at least 6 characters.", form)
		return
	}

	if _, err := session.From(c).SignIn(c.Request.Context(), email, password); err != nil {
		status := http.StatusBadGateway
		var httpErr *apiclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			status = httpErr.StatusCode
		}
		p.logger.WarnContext(c.Request.Context(), "login failed", "error", err)
		p.render(c, status, "login", "Log in", apiclient.Message(err), form)
		return
	}
	c.Redirect(http.StatusSeeOther, session.RouteDashboard)
}

func (p *Pages) Logout(c *gin.Context) {
	if err := session.From(c).Logout(c.Request.Context()); err != nil {
		p.logger.ErrorContext(c.Request.Context(), "logout", "error", err)
	}
	c.Redirect(http.StatusSeeOther, session.RouteLogin)
}

func (p *Pages) Unauthorized(c *gin.Context) {
	p.render(c, http.StatusForbidden, "unauthorized", "Access Denied", "", nil)
}

func (p *Pages) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats := p.queries.DashboardStats(ctx)
	patients := p.queries.RecentPatients(ctx, 1, 10)
	if sessionEnded(c, stats.Err, patients.Err) {
		return
	}
	p.render(c, http.StatusOK, "dashboard", "Dashboard", "", gin.H{"Stats": stats, "Patients": patients})
}

func positiveQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (p *Pages) Patients(c *gin.Context) {
	page := positiveQuery(c, "page", 1)
	perPage := positiveQuery(c, "per_page", 10)
	if perPage > 100 {
		perPage = 100
	}

	res := p.queries.RecentPatients(c.Request.Context(), page, perPage)
	if sessionEnded(c, res.Err) {
		return
	}
	p.render(c, http.StatusOK, "patients", "Patients", "", gin.H{"Page": res})
}

func patientID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func (p *Pages) Patient(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/dashboard/patients")
		return
	}
	p.renderPatient(c, http.StatusOK, id, "")
}

func (p *Pages) renderPatient(c *gin.Context, status int, id int64, errMsg string) {
	res := p.queries.PatientDetails(c.Request.Context(), id)
	if sessionEnded(c, res.Err) {
		return
	}
	p.render(c, status, "patient", "Patient", errMsg, gin.H{"Patient": res, "Statuses": patientStatuses})
}

func (p *Pages) UpdatePatientStatus(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/dashboard/patients")
		return
	}

	_, err := p.queries.UpdatePatientStatus(c.Request.Context(), id, c.PostForm("status"))
	if err != nil {
		if sessionEnded(c, err) {
			return
		}
		status := http.StatusBadGateway
		var httpErr *apiclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			status = httpErr.StatusCode
		}
		p.renderPatient(c, status, id, apiclient.Message(err))
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/dashboard/patients/%d", id))
}

// ToggleTheme flips the persisted theme and returns to the page it came
// from.
func (p *Pages) ToggleTheme(c *gin.Context) {
	next := store.ThemeDark
	if p.themes.ThemeMode() == store.ThemeDark {
		next = store.ThemeLight
	}
	if err := p.themes.SetThemeMode(next); err != nil {
		p.logger.ErrorContext(c.Request.Context(), "save theme", "error", err)
	}

	back := "/"
	if ref, err := url.Parse(c.Request.Referer()); err == nil && strings.HasPrefix(ref.Path, "/") && (ref.Host == "" || ref.Host == c.Request.Host) {
		back = ref.Path
		if ref.RawQuery != "" {
			back += "?" + ref.RawQuery
		}
	}
	c.Redirect(http.StatusSeeOther, back)
}
