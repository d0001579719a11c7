package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufespi/gestor-academico/internal/apperr"
	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/gate"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
	"github.com/lufespi/gestor-academico/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type account struct {
	id       string
	password string
	role     role.Role
}

// fakeAPI stands in for the API: accounts by email, live access and refresh
// tokens, and per-query failures.
type fakeAPI struct {
	mu       sync.Mutex
	accounts map[string]account
	access   map[string]string
	refresh  map[string]string
	issued   int

	refuseRefresh bool
	failing       map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		accounts: map[string]account{
			"coord@uni.br": {id: "c1", password: "segredo1", role: role.Coordinator},
			"prof@uni.br":  {id: "p1", password: "segredo1", role: role.Professor},
			"aluno@uni.br": {id: "s1", password: "segredo1", role: role.Student},
		},
		access:  make(map[string]string),
		refresh: make(map[string]string),
		failing: make(map[string]bool),
	}
}

func (f *fakeAPI) issueLocked(email string) session.AuthResult {
	f.issued++
	acc := f.accounts[email]
	creds := &session.Credentials{
		AccessToken:  fmt.Sprintf("access-%s-%d", acc.id, f.issued),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", acc.id, f.issued),
	}
	f.access[creds.AccessToken] = email
	f.refresh[creds.RefreshToken] = email
	return session.AuthResult{Identity: session.Identity{ID: acc.id, Email: email}, Credentials: creds}
}

// expireAccess invalidates every access token currently issued.
func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]string)
}

func (f *fakeAPI) Authenticate(_ context.Context, email, password string) (session.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		return session.AuthResult{}, apperr.Auth(apperr.CodeInvalidCredentials)
	}
	return f.issueLocked(email), nil
}

func (f *fakeAPI) CreateAccount(_ context.Context, req session.SignUpRequest) (session.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[req.Email]; ok {
		return session.AuthResult{}, apperr.Auth(apperr.CodeEmailTaken)
	}
	f.accounts[req.Email] = account{id: "new-" + req.Email, password: req.Password, role: req.Role}
	return session.AuthResult{Identity: session.Identity{ID: "new-" + req.Email, Email: req.Email}, ConfirmationRequired: true}, nil
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (session.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.refresh[refreshToken]
	if !ok || f.refuseRefresh {
		return session.AuthResult{}, apperr.Auth(apperr.CodeSessionExpired)
	}
	delete(f.refresh, refreshToken)
	return f.issueLocked(email), nil
}

func (f *fakeAPI) FetchProfile(_ context.Context, accessToken string) (*session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.access[accessToken]
	if !ok {
		return nil, apperr.Auth(apperr.CodeSessionExpired)
	}
	acc := f.accounts[email]
	return &session.Profile{UserID: acc.id, Email: email, FullName: "Teste", Role: acc.role}, nil
}

func (f *fakeAPI) RevokeSession(_ context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, refreshToken)
	return nil
}

func (f *fakeAPI) RequestPasswordReset(context.Context, string) error { return nil }

func (f *fakeAPI) ConfirmEmail(_ context.Context, token string) error {
	if token != "good-token" {
		return apperr.Auth(apperr.CodeInvalidToken)
	}
	return nil
}

func (f *fakeAPI) Query(_ context.Context, accessToken, name string, _ map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.access[accessToken]
	if !ok {
		return nil, apperr.Auth(apperr.CodeSessionExpired)
	}
	if f.failing[name] {
		return nil, &apperr.DataError{Query: name, Code: "query_failed", Status: http.StatusInternalServerError}
	}
	if name == rpc.MyProjectDetails {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"rpc":%q,"role":%q}`, name, f.accounts[email].role)), nil
}

type browser struct {
	t      *testing.T
	app    *httptest.Server
	client *http.Client
	jar    *cookiejar.Jar
}

func newTestDashboard(t *testing.T, api *fakeAPI, cacheSize int) (*httptest.Server, *Sessions) {
	t.Helper()
	cfg := config.Config{
		BackendTimeout:   2 * time.Second,
		RefreshTokenTTL:  time.Hour,
		SessionCacheSize: cacheSize,
	}
	factory := func() *session.Store {
		return session.NewStore(api, session.WithLogger(quiet), session.WithProfileRetry(1, time.Millisecond))
	}
	sessions, err := NewSessions(cfg, factory, quiet)
	require.NoError(t, err)
	app := httptest.NewServer(NewServer(cfg, sessions, api, quiet).Router())
	t.Cleanup(func() {
		app.Close()
		sessions.Purge()
	})
	return app, sessions
}

func newBrowser(t *testing.T, app *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, app: app, client: &http.Client{Jar: jar}, jar: jar}
}

func (b *browser) do(method, path string, body interface{}, out interface{}) int {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, b.app.URL+path, reader)
	require.NoError(b.t, err)
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.app.URL)
	for _, c := range b.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) signIn(email string) {
	b.t.Helper()
	status := b.do(http.MethodPost, "/session/sign-in", map[string]string{"email": email, "password": "segredo1"}, nil)
	require.Equal(b.t, http.StatusOK, status)
	var resp sessionResponse
	b.do(http.MethodGet, "/session?wait=1", nil, &resp)
	require.True(b.t, resp.State.Resolved())
	require.NotNil(b.t, resp.State.Identity, "sign-in of %s was lost", email)
}

func (b *browser) navigate(path string) navigation {
	b.t.Helper()
	var nv navigation
	status := b.do(http.MethodGet, "/navigate?wait=1&path="+url.QueryEscape(path), nil, &nv)
	require.Equal(b.t, http.StatusOK, status)
	return nv
}

func TestAnonymousBrowserIsSentToAuth(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)

	nv := b.navigate("/students")
	assert.Equal(t, gate.RedirectAuth, nv.Decision.Outcome)
	assert.Equal(t, "/auth", nv.Decision.Target)

	nv = b.navigate("/auth")
	assert.Equal(t, gate.Allow, nv.Decision.Outcome)
	assert.Nil(t, nv.View)
	assert.NotEmpty(t, b.cookie(sessionCookie))
}

func TestCoordinatorNavigation(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)
	b.signIn("coord@uni.br")
	assert.NotEmpty(t, b.cookie(refreshCookie))

	nv := b.navigate("/advisees")
	assert.Equal(t, gate.RedirectHome, nv.Decision.Outcome)
	assert.Equal(t, "/coordinator/dashboard", nv.Decision.Target)

	nv = b.navigate("/students/")
	assert.Equal(t, gate.Allow, nv.Decision.Outcome)
	require.NotNil(t, nv.View)
	assert.Equal(t, "coordinator_students", nv.View.Name)

	nv = b.navigate("/auth")
	assert.Equal(t, gate.RedirectHome, nv.Decision.Outcome)

	nv = b.navigate("/nope")
	assert.Equal(t, gate.NotFound, nv.Decision.Outcome)

	var menu struct {
		Role  role.Role `json:"role"`
		Items []struct {
			Path string `json:"path"`
		} `json:"items"`
	}
	b.do(http.MethodGet, "/menu", nil, &menu)
	assert.Equal(t, role.Coordinator, menu.Role)
	assert.NotEmpty(t, menu.Items)
}

func TestFreshBrowsersKeepTheirSignIn(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 64)

	for i := 0; i < 20; i++ {
		b := newBrowser(t, app)
		status := b.do(http.MethodPost, "/session/sign-in", map[string]string{"email": "aluno@uni.br", "password": "segredo1"}, nil)
		require.Equal(t, http.StatusOK, status)

		var resp sessionResponse
		b.do(http.MethodGet, "/session?wait=1", nil, &resp)
		require.NotNil(t, resp.State.Identity, "browser %d lost its sign-in", i)
		require.NotNil(t, resp.State.Profile)
		assert.Equal(t, role.Student, resp.State.Profile.Role)
		assert.Equal(t, "/student/dashboard", resp.Home)
		assert.NotEmpty(t, b.cookie(refreshCookie))
	}
}

func TestSignInErrorsAreLocalized(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)

	var body map[string]string
	status := b.do(http.MethodPost, "/session/sign-in", map[string]string{"email": "coord@uni.br", "password": "errada"}, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeInvalidCredentials, body["error"])
	assert.Equal(t, "Email ou senha incorretos", body["message"])

	status = b.do(http.MethodPost, "/session/sign-up", map[string]string{
		"email": "coord@uni.br", "password": "segredo1", "fullName": "X", "role": "student",
	}, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Este email já está cadastrado", body["message"])

	status = b.do(http.MethodPost, "/session/confirm", map[string]string{"token": "bad"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeInvalidToken, body["error"])
}

func TestSignUpAwaitingConfirmationStaysSignedOut(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)

	var outcome session.SignUpOutcome
	status := b.do(http.MethodPost, "/session/sign-up", map[string]string{
		"email": "novo@uni.br", "password": "segredo1", "fullName": "Novo", "role": "Professor",
	}, &outcome)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, outcome.ConfirmationRequired)

	assert.Equal(t, gate.RedirectAuth, b.navigate("/dashboard").Decision.Outcome)
	assert.Equal(t, http.StatusOK, b.do(http.MethodPost, "/session/confirm", map[string]string{"token": "good-token"}, nil))
}

func TestResumeFromRefreshCookie(t *testing.T) {
	api := newFakeAPI()
	app, _ := newTestDashboard(t, api, 16)

	first := newBrowser(t, app)
	first.signIn("aluno@uni.br")
	refresh := first.cookie(refreshCookie)
	require.NotEmpty(t, refresh)

	// A new tab without tb_sid but with the refresh cookie resumes.
	second := newBrowser(t, app)
	u, _ := url.Parse(app.URL)
	second.jar.SetCookies(u, []*http.Cookie{{Name: refreshCookie, Value: refresh, Path: "/"}})

	var resp sessionResponse
	second.do(http.MethodGet, "/session?wait=1", nil, &resp)
	require.NotNil(t, resp.State.Identity)
	assert.Equal(t, "s1", resp.State.Identity.ID)
	assert.Equal(t, role.Student, resp.State.Role())
	assert.Equal(t, "/student/dashboard", resp.Home)
	assert.NotEqual(t, refresh, second.cookie(refreshCookie))
}

func TestPagePanels(t *testing.T) {
	api := newFakeAPI()
	api.failing[rpc.MyDeadlines] = true
	app, _ := newTestDashboard(t, api, 16)
	b := newBrowser(t, app)
	b.signIn("aluno@uni.br")

	var page struct {
		Decision gate.Decision `json:"decision"`
		View     struct {
			Name string `json:"name"`
		} `json:"view"`
		Panels []panel `json:"panels"`
	}
	status := b.do(http.MethodGet, "/pages/dashboard", nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, gate.Allow, page.Decision.Outcome)
	assert.Equal(t, "student_dashboard", page.View.Name)
	require.Len(t, page.Panels, 4)

	byName := make(map[string]panel)
	for _, p := range page.Panels {
		byName[p.Name] = p
	}
	assert.Equal(t, panelNoData, byName[rpc.MyDeadlines].Status)
	assert.Equal(t, "Nenhum dado disponível", byName[rpc.MyDeadlines].Message)
	assert.Equal(t, panelNoData, byName[rpc.MyProjectDetails].Status)
	assert.Equal(t, panelOK, byName[rpc.MyMeetings].Status)
	assert.JSONEq(t, `{"rpc":"get_my_meetings","role":"student"}`, string(byName[rpc.MyMeetings].Data))

	var denied pageResponse
	status = b.do(http.MethodGet, "/pages/students", nil, &denied)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, gate.RedirectHome, denied.Decision.Outcome)
	assert.Equal(t, "/student/dashboard", denied.Decision.Target)
	assert.Nil(t, denied.View)
	assert.Empty(t, denied.Panels)

	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/pages/admin", nil, nil))
}

func TestPageReauthenticatesExpiredToken(t *testing.T) {
	api := newFakeAPI()
	app, _ := newTestDashboard(t, api, 16)
	b := newBrowser(t, app)
	b.signIn("prof@uni.br")
	before := b.cookie(refreshCookie)

	api.expireAccess()

	var page pageResponse
	status := b.do(http.MethodGet, "/pages/advisees", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Panels, 1)
	assert.Equal(t, panelOK, page.Panels[0].Status)
	assert.NotEqual(t, before, b.cookie(refreshCookie))
}

func TestPageWithRefusedRefreshSignsOut(t *testing.T) {
	api := newFakeAPI()
	app, _ := newTestDashboard(t, api, 16)
	b := newBrowser(t, app)
	b.signIn("prof@uni.br")

	api.expireAccess()
	api.mu.Lock()
	api.refuseRefresh = true
	api.mu.Unlock()

	var page pageResponse
	status := b.do(http.MethodGet, "/pages/advisees", nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, gate.RedirectAuth, page.Decision.Outcome)
	assert.Empty(t, page.Panels)
	assert.Empty(t, b.cookie(refreshCookie))
}

func TestSignOutIsIdempotent(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)
	b.signIn("coord@uni.br")

	for i := 0; i < 2; i++ {
		var resp sessionResponse
		require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/session/sign-out", nil, &resp))
		assert.Nil(t, resp.State.Identity)
		assert.True(t, resp.State.Resolved())
	}
	assert.Empty(t, b.cookie(refreshCookie))
	assert.Equal(t, gate.RedirectAuth, b.navigate("/coordinator/dashboard").Decision.Outcome)
}

func TestEventsFollowSignOut(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	b := newBrowser(t, app)
	b.signIn("coord@uni.br")

	dialer := websocket.Dialer{Jar: b.jar}
	wsURL := "ws" + strings.TrimPrefix(app.URL, "http") + "/session/events?path=/students"
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil := func(outcome gate.Outcome) event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var ev event
			require.NoError(t, conn.ReadJSON(&ev))
			if ev.Navigation.Decision.Outcome == outcome {
				return ev
			}
		}
	}

	ev := readUntil(gate.Allow)
	assert.Equal(t, "/students", ev.Navigation.Path)

	require.NoError(t, conn.WriteJSON(clientMessage{Path: "/advisees"}))
	ev = readUntil(gate.RedirectHome)
	assert.Equal(t, "/coordinator/dashboard", ev.Navigation.Decision.Target)

	// Another tab of the same browser signs out.
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/session/sign-out", nil, nil))
	ev = readUntil(gate.RedirectAuth)
	assert.Nil(t, ev.State.Identity)
}

func TestEventsRequireSession(t *testing.T) {
	app, _ := newTestDashboard(t, newFakeAPI(), 16)
	wsURL := "ws" + strings.TrimPrefix(app.URL, "http") + "/session/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEvictedSessionIsClosed(t *testing.T) {
	app, sessions := newTestDashboard(t, newFakeAPI(), 1)

	first := newBrowser(t, app)
	first.do(http.MethodGet, "/session", nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: first.cookie(sessionCookie)})
	store, ok := sessions.Lookup(req)
	require.True(t, ok)

	second := newBrowser(t, app)
	second.do(http.MethodGet, "/session", nil, nil)

	_, ok = sessions.Lookup(req)
	assert.False(t, ok)
	assert.Equal(t, 1, sessions.Len())
	ch, _ := store.Subscribe()
	_, open := <-ch
	assert.False(t, open, "evicted store must be closed")
}
