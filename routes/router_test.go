package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civictrack-be/config"
	"civictrack-be/middlewares"
	"civictrack-be/models"
	"civictrack-be/repository"
	"civictrack-be/routes"
	"civictrack-be/services"
	authUtils "civictrack-be/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	store    *repository.Store
	settings *config.Settings
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	settings := config.DefaultSettings()
	settings.JWTSecret = "router-test-secret"

	store := repository.NewMemoryStore().Store()
	limits := services.LimitsFromSettings(settings)
	engine, err := routes.SetupRouter(routes.Dependencies{
		Settings: &settings,
		Users:    services.NewUserService(store.Users),
		Issues:   services.NewIssueService(store.Issues, store.Flags, limits),
		Flags:    services.NewFlagService(store.Issues, store.Flags, store.Tx, limits),
		Admin:    services.NewAdminService(store.Issues, store.Flags, limits),
		Limiter:  middlewares.NewLocalCounter(),
	})
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	return &testServer{t: t, engine: engine, store: store, settings: &settings}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

// user stores an account directly and returns a token for it.
func (s *testServer) user(role models.Role) (primitive.ObjectID, string) {
	s.t.Helper()
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      string(role),
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Password:  "unused",
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := s.store.Users.Create(context.Background(), u); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	token, err := authUtils.GenerateAndSetToken(u.ID.Hex(), string(role), []byte(s.settings.JWTSecret), time.Hour)
	if err != nil {
		s.t.Fatalf("token: %v", err)
	}
	return u.ID, token
}

func (s *testServer) createIssue(token string, lat, lon float64) models.Issue {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/issue/create", token, gin.H{
		"title":       "Broken streetlight",
		"description": "Dark corner at night",
		"category":    "lighting",
		"latitude":    lat,
		"longitude":   lon,
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create issue: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var issue models.Issue
	decode(s.t, rec, &issue)
	return issue
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodGet, "/ping", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	creds := gin.H{"name": "Ada", "email": "ada@example.com", "password": "secret1"}

	if rec := s.do(http.MethodPost, "/api/auth/register", "", creds); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/api/auth/register", "", creds); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "x", "email": "bad", "password": "secret1"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email: expected 400, got %d", rec.Code)
	}

	if rec := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ada@example.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	decode(t, rec, &login)
	if login.Token == "" || login.Role != "citizen" {
		t.Fatalf("unexpected login response %s", rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middlewares.AuthCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected an http-only auth cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.engine.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Errorf("me with cookie: expected 200, got %d", me.Code)
	}

	if rec := s.do(http.MethodGet, "/api/auth/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me without token: expected 401, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/auth/logout", "", nil); rec.Code != http.StatusOK {
		t.Errorf("logout: expected 200, got %d", rec.Code)
	}
}

func TestCreateIssueValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(models.RoleCitizen)

	body := gin.H{
		"title":       "Overflowing bin",
		"description": "Not emptied for a week",
		"category":    "cleanliness",
		"latitude":    40.7128,
		"longitude":   -74.0060,
	}
	if rec := s.do(http.MethodPost, "/api/issue/create", "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create: expected 401, got %d", rec.Code)
	}

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"unknown category", "category", "graffiti"},
		{"latitude out of range", "latitude", 91.0},
		{"longitude out of range", "longitude", -180.5},
		{"missing title", "title", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid := gin.H{}
			for k, v := range body {
				invalid[k] = v
			}
			invalid[tt.field] = tt.value
			if rec := s.do(http.MethodPost, "/api/issue/create", token, invalid); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateIssueRateLimited(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(models.RoleCitizen)

	for i := 0; i < s.settings.RateLimit.IssuesPerDay; i++ {
		s.createIssue(token, 40.7128, -74.0060)
	}
	rec := s.do(http.MethodPost, "/api/issue/create", token, gin.H{
		"title": "One too many", "description": "d", "category": "roads", "latitude": 1.0, "longitude": 1.0,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

type issueList struct {
	Issues []struct {
		ID         string   `json:"id"`
		DistanceKm *float64 `json:"distanceKm"`
	} `json:"issues"`
	TotalIssues int64 `json:"totalIssues"`
}

func (s *testServer) list(path string) issueList {
	s.t.Helper()
	rec := s.do(http.MethodGet, path, "", nil)
	if rec.Code != http.StatusOK {
		s.t.Fatalf("%s: expected 200, got %d %s", path, rec.Code, rec.Body.String())
	}
	var list issueList
	decode(s.t, rec, &list)
	return list
}

func TestListIssuesNearby(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(models.RoleCitizen)
	issue := s.createIssue(token, 40.7128, -74.0060)

	if list := s.list("/api/issue?lat=40.7589&lon=-73.9851&radius=5"); list.TotalIssues != 0 {
		t.Errorf("expected no issue within 5 km, got %d", list.TotalIssues)
	}

	list := s.list("/api/issue?lat=40.7589&lon=-73.9851&radius=6")
	if list.TotalIssues != 1 || list.Issues[0].ID != issue.ID.Hex() {
		t.Fatalf("expected the issue within 6 km, got %+v", list)
	}
	if d := list.Issues[0].DistanceKm; d == nil || *d < 5.3 || *d > 5.5 {
		t.Errorf("expected distance near 5.42 km, got %v", d)
	}

	for _, path := range []string{
		"/api/issue?lat=40.7&lon=-74&radius=50",
		"/api/issue?lat=40.7&lon=-74&radius=NaN",
		"/api/issue?lat=95&lon=-74",
		"/api/issue?lat=40.7",
		"/api/issue?radius=2",
		"/api/issue?page=0",
		"/api/issue?limit=abc",
		"/api/issue?category=graffiti",
	} {
		if rec := s.do(http.MethodGet, path, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	all := s.list("/api/issue?category=all&sort=oldest")
	if all.TotalIssues != 1 || all.Issues[0].DistanceKm != nil {
		t.Errorf("unexpected listing without a center: %+v", all)
	}
}

func TestFlagHidesIssue(t *testing.T) {
	s := newTestServer(t)
	_, reporter := s.user(models.RoleCitizen)
	issue := s.createIssue(reporter, 40.7128, -74.0060)
	path := "/api/issue/" + issue.ID.Hex() + "/flag"

	if rec := s.do(http.MethodPost, path, reporter, nil); rec.Code != http.StatusForbidden {
		t.Errorf("self flag: expected 403, got %d", rec.Code)
	}

	var result struct {
		FlagCount int  `json:"flagCount"`
		IsHidden  bool `json:"isHidden"`
	}
	var lastToken string
	for i := 1; i <= s.settings.Moderation.HideThreshold; i++ {
		_, token := s.user(models.RoleCitizen)
		lastToken = token
		rec := s.do(http.MethodPost, path, token, gin.H{"reason": "spam"})
		if rec.Code != http.StatusOK {
			t.Fatalf("flag %d: expected 200, got %d %s", i, rec.Code, rec.Body.String())
		}
		decode(t, rec, &result)
		if result.FlagCount != i {
			t.Errorf("flag %d: expected count %d, got %d", i, i, result.FlagCount)
		}
	}
	if !result.IsHidden {
		t.Fatalf("expected the issue to be hidden at the threshold")
	}

	if rec := s.do(http.MethodPost, path, lastToken, nil); rec.Code != http.StatusConflict {
		t.Errorf("duplicate flag: expected 409, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/issue/"+primitive.NewObjectID().Hex()+"/flag", lastToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing issue: expected 404, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/issue/not-an-id/flag", lastToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}

	detailPath := "/api/issue/" + issue.ID.Hex()
	if rec := s.do(http.MethodGet, detailPath, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("hidden issue for anonymous: expected 404, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, detailPath, reporter, nil); rec.Code != http.StatusOK {
		t.Errorf("hidden issue for reporter: expected 200, got %d", rec.Code)
	}

	var mine []models.Issue
	rec := s.do(http.MethodGet, "/api/user/issues", reporter, nil)
	decode(t, rec, &mine)
	if len(mine) != 1 || !mine[0].IsHidden {
		t.Errorf("expected the reporter to still see the hidden issue, got %s", rec.Body.String())
	}
}

func TestFlagAcceptsEmptyBodyOfUnknownLength(t *testing.T) {
	s := newTestServer(t)
	_, reporter := s.user(models.RoleCitizen)
	issue := s.createIssue(reporter, 40.7128, -74.0060)
	_, token := s.user(models.RoleCitizen)

	// A reader httptest cannot size leaves ContentLength at -1, as with a
	// chunked request.
	req := httptest.NewRequest(http.MethodPost, "/api/issue/"+issue.ID.Hex()+"/flag", io.MultiReader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if req.ContentLength != -1 {
		t.Fatalf("expected unknown content length, got %d", req.ContentLength)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/issue/"+issue.ID.Hex()+"/flag", strings.NewReader("{"))
	bad.Header.Set("Content-Type", "application/json")
	bad.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	_, citizen := s.user(models.RoleCitizen)
	_, admin := s.user(models.RoleAdmin)
	issue := s.createIssue(citizen, 40.7128, -74.0060)
	id := issue.ID.Hex()

	for i := 0; i < s.settings.Moderation.HideThreshold; i++ {
		_, token := s.user(models.RoleCitizen)
		if rec := s.do(http.MethodPost, "/api/issue/"+id+"/flag", token, nil); rec.Code != http.StatusOK {
			t.Fatalf("flag: %d %s", rec.Code, rec.Body.String())
		}
	}

	if rec := s.do(http.MethodGet, "/api/admin/flagged", citizen, nil); rec.Code != http.StatusForbidden {
		t.Errorf("citizen: expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/admin/flagged", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", rec.Code)
	}

	var queue struct {
		TotalIssues int64 `json:"totalIssues"`
	}
	rec := s.do(http.MethodGet, "/api/admin/flagged", admin, nil)
	decode(t, rec, &queue)
	if rec.Code != http.StatusOK || queue.TotalIssues != 1 {
		t.Errorf("flagged: unexpected %d %s", rec.Code, rec.Body.String())
	}

	var flags []models.Flag
	rec = s.do(http.MethodGet, "/api/admin/issue/"+id+"/flags", admin, nil)
	decode(t, rec, &flags)
	if len(flags) != s.settings.Moderation.HideThreshold {
		t.Errorf("expected %d flags, got %d", s.settings.Moderation.HideThreshold, len(flags))
	}

	if rec := s.do(http.MethodPatch, "/api/admin/issue/"+id+"/status", admin, gin.H{"status": "done"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", rec.Code)
	}
	rec = s.do(http.MethodPatch, "/api/admin/issue/"+id+"/status", admin, gin.H{"status": "in_progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(http.MethodPost, "/api/admin/issue/"+id+"/unhide", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("unhide: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/issue/"+id, "", nil); rec.Code != http.StatusOK {
		t.Errorf("unhidden issue: expected 200, got %d", rec.Code)
	}

	var analytics models.Analytics
	rec = s.do(http.MethodGet, "/api/admin/analytics", admin, nil)
	decode(t, rec, &analytics)
	if analytics.TotalIssues != 1 || analytics.TotalFlags != int64(s.settings.Moderation.HideThreshold) || len(analytics.Last7Days) != 7 {
		t.Errorf("unexpected analytics %s", rec.Body.String())
	}
}
