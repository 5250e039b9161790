package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/app"
	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/router"
)

type signedOutGateway struct{}

func (signedOutGateway) Get(context.Context, string, *apiclient.Options) (json.RawMessage, error) {
	return nil, &apiclient.Error{Message: "Unauthorized"}
}

func (signedOutGateway) Post(context.Context, string, any, *apiclient.Options) (json.RawMessage, error) {
	return nil, nil
}

func (signedOutGateway) ResetSession() {}

func (signedOutGateway) Do(context.Context, string, string, any, *apiclient.Options) (json.RawMessage, error) {
	return nil, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDReusesValidHeader(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", incoming)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Body.String() != incoming {
		t.Errorf("request id = %q, want %q", rec.Body.String(), incoming)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if _, err := uuid.Parse(rec.Body.String()); err != nil {
		t.Errorf("minted id %q is not a uuid", rec.Body.String())
	}
}

func TestCORSPolicy(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(NewOriginPolicy([]string{"https://dash.example"}, true)))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		origin string
		want   string
	}{
		{"https://dash.example", "https://dash.example"},
		{"https://evil.example", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Errorf("origin %s: allow-origin = %q, want %q", tc.origin, got, tc.want)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
}

func TestOriginPolicyFor(t *testing.T) {
	cases := []struct {
		env     string
		origins []string
		origin  string
		want    bool
	}{
		{"development", nil, "https://anything.example", true},
		{"production", nil, "https://anything.example", false},
		{"production", []string{"https://dash.example"}, "https://dash.example", true},
		{"production", []string{"https://dash.example"}, "https://evil.example", false},
	}
	for _, tc := range cases {
		policy := OriginPolicyFor(&config.AppConfig{Environment: tc.env, AllowCORSOrigins: tc.origins})
		if got := policy.Allowed(tc.origin); got != tc.want {
			t.Errorf("%s %v %s: allowed = %v, want %v", tc.env, tc.origins, tc.origin, got, tc.want)
		}
	}
}

func TestProductionCORSDoesNotReflectUnknownOrigins(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(OriginPolicyFor(&config.AppConfig{Environment: "production"})))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" || rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Errorf("unknown origin got CORS headers: %v", rec.Header())
	}
}

func TestSameHost(t *testing.T) {
	if !SameHost("https://dash.example:8443", "dash.example:8443") {
		t.Error("same host rejected")
	}
	if SameHost("https://evil.example", "dash.example") {
		t.Error("foreign host accepted")
	}
}

func TestGuardRedirectsSignedOutContext(t *testing.T) {
	cfg := &config.AppConfig{
		Notifications: config.NotificationConfig{Lifetime: 5 * time.Second, ResumeAfter: 2500 * time.Millisecond},
		Contexts:      config.ContextConfig{CookieName: "ctx", IdleTTL: time.Minute},
	}
	table := router.DefaultTable()
	manager := app.NewManager(cfg, table, zerolog.Nop(), nil,
		app.WithGatewayFactory(func() (app.Gateway, error) { return signedOutGateway{}, nil }),
	)
	defer manager.CloseAll()

	route, _ := table.Lookup(router.RouteDashboard)
	engine := gin.New()
	engine.Use(PageContext(cfg.Contexts, manager, zerolog.Nop()))
	engine.GET(route.Path, Guard(route), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route.Path, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("location = %q, want /", loc)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("page context cookie not set")
	}
	if manager.Len() != 1 {
		t.Errorf("contexts = %d, want 1", manager.Len())
	}
}

func TestLoginThrottle(t *testing.T) {
	cfg := &config.AppConfig{
		Notifications: config.NotificationConfig{Lifetime: 5 * time.Second, ResumeAfter: 2500 * time.Millisecond},
		Contexts: config.ContextConfig{
			CookieName:    "ctx",
			IdleTTL:       time.Minute,
			LoginInterval: time.Hour,
			LoginBurst:    2,
		},
	}
	manager := app.NewManager(cfg, router.DefaultTable(), zerolog.Nop(), nil,
		app.WithGatewayFactory(func() (app.Gateway, error) { return signedOutGateway{}, nil }),
	)
	defer manager.CloseAll()

	engine := gin.New()
	engine.Use(PageContext(cfg.Contexts, manager, zerolog.Nop()))
	engine.POST("/login", LoginThrottle(), func(c *gin.Context) { c.Status(http.StatusOK) })

	var cookies []*http.Cookie
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if cookies == nil {
			cookies = rec.Result().Cookies()
		}
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("attempt %d: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
	if manager.Len() != 1 {
		t.Fatalf("contexts = %d, want 1", manager.Len())
	}
}

func newContextEngine(t *testing.T, limit int) (*gin.Engine, *app.Manager, config.ContextConfig) {
	t.Helper()
	cfg := &config.AppConfig{
		Notifications: config.NotificationConfig{Lifetime: 5 * time.Second, ResumeAfter: 2500 * time.Millisecond},
		Contexts:      config.ContextConfig{CookieName: "ctx", IdleTTL: time.Minute, Max: limit},
	}
	manager := app.NewManager(cfg, router.DefaultTable(), zerolog.Nop(), nil,
		app.WithGatewayFactory(func() (app.Gateway, error) { return signedOutGateway{}, nil }),
	)
	t.Cleanup(manager.CloseAll)

	engine := gin.New()
	engine.Use(PageContext(cfg.Contexts, manager, zerolog.Nop()))
	engine.GET("/", func(c *gin.Context) {
		pc, _ := CurrentContext(c)
		c.String(http.StatusOK, pc.ID)
	})
	return engine, manager, cfg.Contexts
}

func TestPageContextReplacesMalformedCookie(t *testing.T) {
	engine, manager, cfg := newContextEngine(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: "../not-a-ksuid"})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() == "../not-a-ksuid" || manager.Len() != 1 {
		t.Fatalf("context id = %q, contexts = %d", rec.Body.String(), manager.Len())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != rec.Body.String() {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestPageContextLimit(t *testing.T) {
	engine, manager, _ := newContextEngine(t, 1)

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusServiceUnavailable || second.Header().Get("Retry-After") == "" {
		t.Fatalf("second status = %d, headers = %v", second.Code, second.Header())
	}

	// the existing context keeps working at the cap
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(first.Result().Cookies()[0])
	again := httptest.NewRecorder()
	engine.ServeHTTP(again, req)
	if again.Code != http.StatusOK || again.Body.String() != first.Body.String() {
		t.Errorf("returning context: status = %d, id = %q", again.Code, again.Body.String())
	}
	if manager.Len() != 1 {
		t.Errorf("contexts = %d, want 1", manager.Len())
	}
}
