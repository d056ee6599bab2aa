package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/client-intake/internal/config"
	"github.com/ignatzorin/client-intake/internal/db"
	"github.com/ignatzorin/client-intake/internal/http/handlers"
	"github.com/ignatzorin/client-intake/internal/http/middleware"
	"github.com/ignatzorin/client-intake/internal/intake"
	"github.com/ignatzorin/client-intake/internal/repository"
	"github.com/ignatzorin/client-intake/internal/service"
	"github.com/ignatzorin/client-intake/internal/storage"
	"github.com/ignatzorin/client-intake/internal/ws"
)

const testPassword = "Secret123"

type testApp struct {
	engine *gin.Engine
	forms  *service.FormService
	store  *repository.SubmissionRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	conn, err := db.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.RunMigrations(ctx, conn, "../../../migrations"))

	cfg := &config.Config{
		Env:               "test",
		JWTSecret:         "router-test-secret-router-test-secret",
		SessionTTL:        time.Hour,
		DashboardUsername: "admin",
		MaxUploadSizeMB:   1,
		MaxAssets:         2,
		DashboardPageSize: 2,
		AllowedOrigins:    []string{"http://localhost:5173"},
		RateLimitLimit:    100,
		RateLimitPeriod:   time.Minute,
	}

	hash, err := service.HashPassword(testPassword)
	require.NoError(t, err)

	assets, err := storage.NewAssetStorage(t.TempDir(), cfg.MaxUploadSizeMB)
	require.NoError(t, err)

	hub := ws.NewHub()
	go hub.Run(ctx)

	kv := repository.NewKVRepository(conn)
	store := repository.NewSubmissionRepository(kv)
	drafts := repository.NewDraftRepository(kv)

	cache := service.NewCacheService(ctx)
	notifier := service.NewChangeNotifier(cache, hub)
	auth := service.NewAuthService(service.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL), cache, kv, cfg.DashboardUsername, hash)
	forms := service.NewFormService(ctx, drafts, store, intake.NewClient("", 0), assets, notifier, service.FormConfig{
		AutosavePeriod: time.Hour,
		MaxAssets:      int(cfg.MaxAssets),
	})
	t.Cleanup(func() { forms.Shutdown(context.Background()) })

	seeder := service.NewSeedService(store, notifier)
	dashboard := service.NewDashboardService(store, seeder, cache, notifier, int(cfg.DashboardPageSize))
	transfer := service.NewTransferService(store, notifier)

	dashboardHandler := handlers.NewDashboardHandler(dashboard, transfer, cfg.MaxUploadBytes())
	engine := SetupRouter(cfg, auth,
		handlers.NewAuthHandler(auth, false, dashboardHandler),
		handlers.NewIntakeHandler(forms, cfg.MaxUploadBytes()),
		dashboardHandler,
		handlers.NewWSHandler(hub, auth, cfg.AllowedOrigins),
		handlers.NewHealthHandler(conn, handlers.Counters{FormSessions: forms.ActiveSessions, WSClients: hub.ClientCount}),
	)
	return &testApp{engine: engine, forms: forms, store: store}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	attachment := w.Header().Get("Content-Disposition") != ""
	if !attachment && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w, _ := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"healthy"`)
}

func TestAuth_LoginVerifyLogout(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	w, env = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"password": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "password")

	token := app.login(t)

	w, _ = app.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "login_time")

	w, _ = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Отозванный токен больше не открывает дашборд.
	w, _ = app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_CookieSession(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard_RequiresAuth(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/dashboard", "/api/dashboard/stats", "/api/dashboard/export"} {
		w, _ := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestIntake_FullFlowReachesDashboard(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodPost, "/api/intake/sessions", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view service.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	base := "/api/intake/sessions/" + view.ID

	// Пустой первый шаг не проходит валидацию.
	w, env = app.do(t, http.MethodPost, base+"/advance", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "fullName")

	steps := []gin.H{
		{"client": gin.H{
			"fullName": "Nora Quinn", "email": "nora@studio.io", "businessName": "Quinn Studio",
			"businessType": "professional", "businessDescription": "Interior design studio",
		}},
		{"project": gin.H{
			"websiteType": []string{"portfolio"}, "pages": 4,
			"features": []string{"gallery"}, "specificFeatures": "Project gallery with filters",
		}},
		{"design": gin.H{"designStyle": "elegant"}},
		{"timeline": gin.H{"timeline": "flexible", "budget": "1200-2000", "contentMaterials": "all-ready"}},
	}
	for i, body := range steps {
		w, _ = app.do(t, http.MethodPost, base+"/advance", "", body)
		require.Equal(t, http.StatusOK, w.Code, "шаг %d: %s", i+1, w.Body.String())
	}

	w, _ = app.do(t, http.MethodGet, base+"/review", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nora Quinn")

	w, _ = app.do(t, http.MethodPost, base+"/submit", "", gin.H{"terms_accepted": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(t, http.MethodPost, base+"/submit", "", gin.H{"terms_accepted": true, "additional_notes": "Call after 5pm"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "new", created.Status)

	// Пустое хранилище не засевается демо-данными, раз заявка уже есть.
	token := app.login(t)
	w, env = app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.PageView
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, created.ID, page.Items[0].ID)
	assert.Equal(t, "Call after 5pm", page.Items[0].Additional.Notes)
}

func TestIntake_UnknownSession(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, http.MethodGet, "/api/intake/sessions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/intake/sessions/6f1c1f7e-8b1e-4a43-9d2e-4a52f3c1b8aa", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboard_FilterPageDetailDelete(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	// Первый вход засевает четыре демо-заявки; на странице по две.
	w, env := app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.PageView
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	w, env = app.do(t, http.MethodPut, "/api/dashboard/page/2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Page)

	// Фильтр сбрасывает страницу на первую.
	w, env = app.do(t, http.MethodPost, "/api/dashboard/filters", token, gin.H{"search": "sarah"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Page)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "Sarah Johnson", page.Items[0].Client.FullName)

	w, env = app.do(t, http.MethodGet, "/api/dashboard/requests/0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail handlers.DetailView
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.NotNil(t, detail.Request)
	assert.Equal(t, []string{"$500 - $800"}, detail.Labels["budget"])

	w, _ = app.do(t, http.MethodPut, "/api/dashboard/detail/status", token, gin.H{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodPut, "/api/dashboard/detail/status", token, gin.H{"status": "contacted"})
	require.Equal(t, http.StatusOK, w.Code)

	// Индекс за пределами списка ничего не делает.
	w, env = app.do(t, http.MethodGet, "/api/dashboard/requests/9", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.False(t, detail.Changed)

	w, _ = app.do(t, http.MethodGet, "/api/dashboard/requests/-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodDelete, "/api/dashboard/requests/0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":false`)

	w, _ = app.do(t, http.MethodDelete, "/api/dashboard/requests/0?confirm=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":true`)

	all, err := app.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, s := range all {
		assert.NotEqual(t, "Sarah Johnson", s.Client.FullName)
	}
}

func TestDashboard_StatsAndStubs(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w, env := app.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 4, stats.Total)

	w, _ = app.do(t, http.MethodPost, "/api/dashboard/projects", token, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/dashboard/settings", token, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestDashboard_ReadViewsOnFreshStore(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w, env := app.do(t, http.MethodGet, "/api/dashboard/clients", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var clients []service.Client
	require.NoError(t, json.Unmarshal(env.Data, &clients))
	assert.Len(t, clients, 4)

	app2 := newTestApp(t)
	token2 := app2.login(t)
	w, _ = app2.do(t, http.MethodGet, "/api/dashboard/export?scope=all&format=json", token2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 4)
}

func TestDashboard_ExportImport(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	// Засеваем хранилище первым обращением.
	w, _ := app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/dashboard/export?scope=filtered", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "client-requests-")
	assert.True(t, strings.HasPrefix(w.Body.String(), "ID,Date,Status,Client Name"), w.Body.String())

	w, _ = app.do(t, http.MethodGet, "/api/dashboard/export?scope=filtered&format=json", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/dashboard/export?scope=all&format=json", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.Bytes()

	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/dashboard/import", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		app.engine.ServeHTTP(rec, req)
		return rec
	}

	// Повторный импорт той же выгрузки ничего не добавляет.
	rec := upload("dump.json", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"added":0`)

	rec = upload("extra.json", []byte(`[{"id":"77","client":{"fullName":"Iris West","email":"iris@ccpn.com"}}]`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"added":1`)

	rec = upload("broken.json", []byte(`{"id":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	all, err := app.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "77", all[4].ID)
}

func TestLoginRateLimited(t *testing.T) {
	app := newTestApp(t)

	var last int
	for i := 0; i < 6; i++ {
		w, _ := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"password": "wrong"})
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
