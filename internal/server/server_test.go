package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
	"github.com/harperclay/expensify/internal/storage"
)

// fakeGateway completes the redirect flow without talking to Google. The
// authorization code doubles as the key into the identities map.
type fakeGateway struct {
	mu         sync.Mutex
	state      string
	identities map[string]*model.Identity
	signOutErr error
	listeners  []func(*model.Identity)
}

func (g *fakeGateway) BeginRedirectSignIn(_ context.Context) (string, error) {
	g.mu.Lock()
	g.state = "test-state"
	g.mu.Unlock()
	return "https://accounts.example.com/auth?state=test-state", nil
}

func (g *fakeGateway) HandleCallback(_ context.Context, state, code string) error {
	g.mu.Lock()
	expected := g.state
	g.state = ""
	identity := g.identities[code]
	g.mu.Unlock()

	if state != expected {
		return fmt.Errorf("state mismatch")
	}
	if identity == nil {
		return fmt.Errorf("unknown code %q", code)
	}
	g.notify(identity)
	return nil
}

func (g *fakeGateway) SignOut(_ context.Context) error {
	if g.signOutErr != nil {
		return g.signOutErr
	}
	g.notify(nil)
	return nil
}

func (g *fakeGateway) ConsumePendingRedirectResult(_ context.Context) (*model.Identity, error) {
	return nil, nil
}

func (g *fakeGateway) OnIdentityChanged(fn func(*model.Identity)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
	return func() {}
}

func (g *fakeGateway) notify(identity *model.Identity) {
	g.mu.Lock()
	fns := append([]func(*model.Identity){}, g.listeners...)
	g.mu.Unlock()
	for _, fn := range fns {
		fn(identity)
	}
}

type testEnv struct {
	t      *testing.T
	store  *storage.MemoryStorage
	gw     *fakeGateway
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test interpose on the storage the server sees while
// keeping direct access to the underlying in-memory store.
func newTestEnvWith(t *testing.T, wrap func(*storage.MemoryStorage) service.Storage) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	var backing service.Storage = store
	if wrap != nil {
		backing = wrap(store)
	}
	gw := &fakeGateway{identities: map[string]*model.Identity{
		"code-ada": {ID: "u-ada", Email: "ada@x.com", DisplayName: "Ada"},
		"code-eve": {ID: "u-eve", Email: "eve@x.com", DisplayName: "Eve"},
	}}

	srv := New(Config{}, backing, func() SessionGateway { return gw })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{t: t, store: store, gw: gw, server: ts, client: client}
}

func (e *testEnv) allow(email string, role model.Role) {
	e.t.Helper()
	require.NoError(e.t, e.store.PutAllowListEntry(context.Background(),
		model.AllowListEntry{Email: email, Role: role}))
}

func (e *testEnv) do(method, path string, body any) (*http.Response, []byte) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, payload
}

// signIn walks the whole redirect flow for the given authorization code.
func (e *testEnv) signIn(code string) {
	e.t.Helper()

	resp, _ := e.do(http.MethodPost, "/api/signin", nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(http.MethodGet, "/auth/callback?state=test-state&code="+code, nil)
	require.Equal(e.t, http.StatusFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnonymousSession(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		Loading  bool `json:"loading"`
		SignedIn bool `json:"signedIn"`
		Allowed  bool `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.False(t, sess.Loading)
	assert.False(t, sess.SignedIn)
	assert.False(t, sess.Allowed)

	resp, _ = env.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignInFlow(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleAdmin)

	resp, body := env.do(http.MethodPost, "/api/signin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var signin struct {
		AuthURL string `json:"authUrl"`
	}
	require.NoError(t, json.Unmarshal(body, &signin))
	assert.Contains(t, signin.AuthURL, "state=test-state")

	// Mid-redirect the session is loading, so data endpoints back off.
	resp, _ = env.do(http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/auth/callback?state=test-state&code=code-ada", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, body = env.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess struct {
		SignedIn bool       `json:"signedIn"`
		Allowed  bool       `json:"allowed"`
		Role     model.Role `json:"role"`
		Profile  *struct {
			ID string `json:"id"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.True(t, sess.SignedIn)
	assert.True(t, sess.Allowed)
	assert.Equal(t, model.RoleAdmin, sess.Role)
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "u-ada", sess.Profile.ID)
}

func TestDeniedUser(t *testing.T) {
	env := newTestEnv(t)
	// eve@x.com is not allow-listed.
	env.signIn("code-eve")

	resp, body := env.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess struct {
		SignedIn bool   `json:"signedIn"`
		Allowed  bool   `json:"allowed"`
		Email    string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.True(t, sess.SignedIn)
	assert.False(t, sess.Allowed)
	assert.Equal(t, "eve@x.com", sess.Email)

	resp, body = env.do(http.MethodGet, "/api/expenses", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var denied struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(body, &denied))
	assert.Equal(t, "eve@x.com", denied.Email, "the denial names the signed-in email")

	// Denied sign-ins never create a profile.
	profile, err := env.store.GetProfile(context.Background(), "u-eve")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestCallbackValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodGet, "/auth/callback?error=access_denied", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/auth/callback?state=only-state", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCategoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	resp, body := env.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var categories []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IconPath string `json:"iconPath"`
		IsCustom bool   `json:"isCustom"`
	}
	require.NoError(t, json.Unmarshal(body, &categories))
	require.Len(t, categories, len(model.BuiltinCategories))
	assert.NotEmpty(t, categories[0].IconPath)

	resp, body = env.do(http.MethodPost, "/api/categories",
		map[string]string{"name": "Aquarium", "icon": "not-a-real-icon"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = env.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &categories))
	require.Len(t, categories, len(model.BuiltinCategories)+1)
	assert.Equal(t, "Aquarium", categories[0].Name, "categories stay name-sorted")
	assert.True(t, categories[0].IsCustom)

	resp, _ = env.do(http.MethodPost, "/api/categories", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(http.MethodDelete, "/api/categories/food-dining", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "built-ins cannot be deleted")

	resp, _ = env.do(http.MethodDelete, "/api/categories/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(http.MethodDelete, "/api/categories/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpenseEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	valid := map[string]any{
		"amount":     42.10,
		"currency":   "EUR",
		"occurredOn": "2024-06-15",
		"vendor":     "Trattoria",
		"categoryId": "food-dining",
		"type":       "debit",
	}

	resp, body := env.do(http.MethodPost, "/api/expenses", valid)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	bad := map[string]any{}
	for k, v := range valid {
		bad[k] = v
	}
	bad["currency"] = "JPY"
	resp, _ = env.do(http.MethodPost, "/api/expenses", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad["currency"] = "EUR"
	bad["occurredOn"] = "15/06/2024"
	resp, _ = env.do(http.MethodPost, "/api/expenses", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(http.MethodGet, "/api/expenses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var expenses []struct {
		Vendor     string `json:"vendor"`
		OccurredOn string `json:"occurredOn"`
	}
	require.NoError(t, json.Unmarshal(body, &expenses))
	require.Len(t, expenses, 1)
	assert.Equal(t, "Trattoria", expenses[0].Vendor)
	assert.Equal(t, "2024-06-15", expenses[0].OccurredOn)

	resp, body = env.do(http.MethodGet, "/api/vendors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vendors []string
	require.NoError(t, json.Unmarshal(body, &vendors))
	assert.Equal(t, []string{"Trattoria"}, vendors)
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	resp, body := env.do(http.MethodPost, "/api/images", map[string]string{"filename": "lunch.jpg"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var img model.StoredImage
	require.NoError(t, json.Unmarshal(body, &img))
	assert.Equal(t, "lunch.jpg", img.Name)
	assert.Contains(t, img.URL, "placehold.co")
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	resp, _ := env.do(http.MethodPost, "/api/signout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// faultyStorage fails reads on demand, wrapped the same way the document
// store wraps driver failures.
type faultyStorage struct {
	*storage.MemoryStorage
	outage error
}

func (f *faultyStorage) ListRecentExpenses(ctx context.Context, ownerID string, limit int) ([]model.Expense, error) {
	if f.outage != nil {
		return nil, f.outage
	}
	return f.MemoryStorage.ListRecentExpenses(ctx, ownerID, limit)
}

func (f *faultyStorage) ListCustomCategories(ctx context.Context, ownerID string) ([]model.Category, error) {
	if f.outage != nil {
		return nil, f.outage
	}
	return f.MemoryStorage.ListCustomCategories(ctx, ownerID)
}

func TestStoreOutageMapsTo503(t *testing.T) {
	var faulty *faultyStorage
	env := newTestEnvWith(t, func(mem *storage.MemoryStorage) service.Storage {
		faulty = &faultyStorage{MemoryStorage: mem}
		return faulty
	})
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	faulty.outage = fmt.Errorf("%w: query expenses: %v",
		common.ErrStoreUnavailable, fmt.Errorf("dial tcp: i/o timeout"))

	resp, _ := env.do(http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode,
		"a store outage is retryable, not a server bug")
	resp, _ = env.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Session state survives the outage: once the store is back the same
	// session serves data again.
	faulty.outage = nil
	resp, _ = env.do(http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNonBoundaryFailureMapsTo500(t *testing.T) {
	var faulty *faultyStorage
	env := newTestEnvWith(t, func(mem *storage.MemoryStorage) service.Storage {
		faulty = &faultyStorage{MemoryStorage: mem}
		return faulty
	})
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	faulty.outage = fmt.Errorf("corrupt document")
	resp, _ := env.do(http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSignOut_GatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	env.allow("ada@x.com", model.RoleUser)
	env.signIn("code-ada")

	env.gw.signOutErr = fmt.Errorf("revocation failed")
	resp, _ := env.do(http.MethodPost, "/api/signout", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// Still signed in; the session was not cleared optimistically.
	env.gw.signOutErr = nil
	resp, _ = env.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
