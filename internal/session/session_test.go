package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/model"
	"iprescribe-console/internal/store"
)

type navigation struct {
	route   string
	replace bool
}

type recordingNavigator struct {
	mu   sync.Mutex
	navs []navigation
}

func (r *recordingNavigator) Navigate(_ context.Context, route string, replace bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navs = append(r.navs, navigation{route: route, replace: replace})
}

func (r *recordingNavigator) all() []navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigation(nil), r.navs...)
}

type countingCache struct{ resets atomic.Int32 }

func (c *countingCache) Reset() { c.resets.Add(1) }

type stubAuthenticator struct {
	data *model.LoginData
	err  error
}

func (s stubAuthenticator) Login(context.Context, string, string) (*model.LoginData, error) {
	return s.data, s.err
}

func adminIdentity() model.Identity {
	first := "Ada"
	return model.Identity{
		ID:        1,
		Email:     "admin@iprescribe.online",
		FirstName: &first,
		Roles:     []model.Role{{ID: 1, Name: "Admin", Slug: model.RoleSlugAdmin}},
	}
}

func doctorIdentity() model.Identity {
	return model.Identity{
		ID:    2,
		Email: "doc@iprescribe.online",
		Roles: []model.Role{{ID: 2, Name: "Doctor", Slug: "doctor"}},
	}
}

func TestDerivedFlags(t *testing.T) {
	admin := adminIdentity()
	doctor := doctorIdentity()

	require.False(t, IsAuthenticated("", &admin))
	require.False(t, IsAuthenticated("tok", nil))
	require.True(t, IsAuthenticated("tok", &doctor))
	require.False(t, IsAdmin("tok", &doctor))
	require.True(t, IsAdmin("tok", &admin))
	require.False(t, IsAdmin("", &admin))
}

func TestInit_RestoresFromStoreOnce(t *testing.T) {
	st := store.New()
	require.NoError(t, st.Save("tok-1", adminIdentity()))

	m := New(st, &recordingNavigator{})
	require.True(t, m.State().IsLoading)

	m.Init()
	s := m.State()
	require.False(t, s.IsLoading)
	require.True(t, s.IsAuthenticated)
	require.True(t, s.IsAdmin)
	require.Equal(t, "tok-1", s.Credential)

	require.NoError(t, st.Clear())
	m.Init()
	require.True(t, m.State().IsAuthenticated)
}

func TestInit_EmptyStoreIsUnauthenticated(t *testing.T) {
	m := New(store.New(), &recordingNavigator{})
	m.Init()

	s := m.State()
	require.False(t, s.IsLoading)
	require.False(t, s.IsAuthenticated)
	require.Nil(t, s.Identity)
}

func TestLogin_PersistsThenPublishes(t *testing.T) {
	st := store.New()
	m := New(st, &recordingNavigator{})
	m.Init()

	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	require.NoError(t, m.Login(context.Background(), "tok-2", doctorIdentity()))

	cred, id := st.Load()
	require.Equal(t, "tok-2", cred)
	require.Equal(t, int64(2), id.ID)

	s := m.State()
	require.True(t, s.IsAuthenticated)
	require.False(t, s.IsAdmin)
	require.Len(t, seen, 1)
	require.Equal(t, "tok-2", seen[0].Credential)

	require.ErrorIs(t, m.Login(context.Background(), "", doctorIdentity()), ErrEmptyCredential)
}

func TestSignIn_UsesAuthenticator(t *testing.T) {
	st := store.New()
	m := New(st, &recordingNavigator{}, WithAuthenticator(stubAuthenticator{
		data: &model.LoginData{User: adminIdentity(), Token: "tok-3", TokenType: "Bearer"},
	}))
	m.Init()

	id, err := m.SignIn(context.Background(), "admin@iprescribe.online", "secret")
	require.NoError(t, err)
	require.Equal(t, int64(1), id.ID)
	require.Equal(t, "tok-3", st.Credential())
	require.True(t, m.State().IsAdmin)

	rejected := errors.New("invalid credentials")
	m2 := New(store.New(), nil, WithAuthenticator(stubAuthenticator{err: rejected}))
	_, err = m2.SignIn(context.Background(), "a", "b")
	require.ErrorIs(t, err, rejected)
	require.False(t, m2.State().IsAuthenticated)

	_, err = New(store.New(), nil).SignIn(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrNoAuthenticator)
}

func TestLogout_ClearsResetsAndNavigatesOnce(t *testing.T) {
	st := store.New()
	nav := &recordingNavigator{}
	cache := &countingCache{}
	m := New(st, nav, WithCache(cache))
	m.Init()
	require.NoError(t, m.Login(context.Background(), "tok-4", adminIdentity()))

	require.NoError(t, m.Logout(context.Background()))

	cred, id := st.Load()
	require.Empty(t, cred)
	require.Nil(t, id)
	require.False(t, m.State().IsAuthenticated)
	require.EqualValues(t, 1, cache.resets.Load())
	require.Equal(t, []navigation{{route: RouteLogin, replace: true}}, nav.all())
}

func TestHandleInvalidation_IgnoresOtherCredentials(t *testing.T) {
	nav := &recordingNavigator{}
	m := New(store.New(), nav)
	m.Init()
	require.NoError(t, m.Login(context.Background(), "new-token", adminIdentity()))

	m.HandleInvalidation(context.Background(), apiclient.Invalidation{Credential: "old-token"})
	require.True(t, m.State().IsAuthenticated)
	require.Empty(t, nav.all())

	m.HandleInvalidation(context.Background(), apiclient.Invalidation{Credential: "new-token"})
	require.False(t, m.State().IsAuthenticated)
	require.Len(t, nav.all(), 1)
}

func TestRejectedCredential_EndsSessionExactlyOnce(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer upstream.Close()

	st := store.New()
	client, err := apiclient.New(st, apiclient.Options{BaseURL: upstream.URL})
	require.NoError(t, err)

	nav := &recordingNavigator{}
	cache := &countingCache{}
	m := New(st, nav, WithCache(cache))
	m.Attach(client)
	m.Init()
	require.NoError(t, m.Login(context.Background(), "expired", adminIdentity()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.DashboardStats(context.Background())
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 10, hits.Load())
	require.Empty(t, st.Credential())
	require.False(t, m.State().IsAuthenticated)
	require.EqualValues(t, 1, cache.resets.Load())
	require.Equal(t, []navigation{{route: RouteLogin, replace: true}}, nav.all())
}

func TestDispose_RejectsLogin(t *testing.T) {
	m := New(store.New(), nil)
	m.Init()
	m.Dispose()

	require.ErrorIs(t, m.Login(context.Background(), "tok", adminIdentity()), ErrDisposed)
	require.ErrorIs(t, m.Logout(context.Background()), ErrDisposed)
}

func TestFrom_PanicsWithoutProvide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(store.New(), nil)

	r := gin.New()
	r.GET("/provided", Provide(m), func(c *gin.Context) {
		if From(c) != m {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/bare", func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				c.String(http.StatusInternalServerError, "%v", rec)
			}
		}()
		From(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/provided", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bare", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "session: Manager not provided; register session.Provide")
}
