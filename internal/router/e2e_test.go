package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/clock"
	"github.com/smms/internal/db"
	"github.com/smms/internal/handler"
	"github.com/smms/internal/service"
	"github.com/smms/internal/worker"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const e2eBaseURL = "http://example.test"

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(t *testing.T, handler http.Handler) *localClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) *http.Response {
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	c.jar.SetCookies(req.URL, resp.Cookies())
	return resp
}

func (c *localClient) mustJSON(t *testing.T, method, path string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e2eBaseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp := c.Do(req)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
	}
	return decoded
}

func postStatus(t *testing.T, payload map[string]interface{}) string {
	t.Helper()
	post, _ := payload["post"].(map[string]interface{})
	status, _ := post["status"].(string)
	return status
}

// TestE2E_ScheduledPostLifecycle 覆盖注册、登录、排期、调度器自动发布与发布后只读的完整流程
func TestE2E_ScheduledPostLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if _, err := db.EnsureAdmin(gdb, "admin@example.test", "admin-pass1", bcrypt.MinCost); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	clk := clock.NewFixed(clock.MustParse("2024-06-01T12:00:00"))
	api := handler.NewAPI(gdb, handler.Options{
		Clock:      clk,
		BcryptCost: bcrypt.MinCost,
		Upload:     service.UploadOptions{Dir: t.TempDir(), URLPath: "/uploads"},
		BackupDir:  t.TempDir(),
	})
	scheduler := worker.NewPublishScheduler(api.Publisher(), time.Second)
	api.SetScheduler(scheduler)
	engine := SetupRouter(api, Options{SessionSecret: "e2e-secret", SessionTimeout: 15 * time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = scheduler.Stop(context.Background())
	})

	writer := newLocalClient(t, engine)
	writer.mustJSON(t, http.MethodPost, "/auth/register", gin.H{
		"email": "writer@example.test", "password": "writer-pass1", "confirm_password": "writer-pass1",
	}, http.StatusCreated)
	writer.mustJSON(t, http.MethodPost, "/auth/login", gin.H{
		"email": "writer@example.test", "password": "writer-pass1",
	}, http.StatusOK)

	created := writer.mustJSON(t, http.MethodPost, "/api/posts", gin.H{
		"title":   "Launch day",
		"content": "Big news *today*",
	}, http.StatusCreated)
	post, _ := created["post"].(map[string]interface{})
	path := fmt.Sprintf("/api/posts/%d", int(post["id"].(float64)))

	scheduled := writer.mustJSON(t, http.MethodPost, path+"/schedule", gin.H{"scheduled_time": "2024-06-01T12:01:00"}, http.StatusOK)
	if postStatus(t, scheduled) != db.PostStatusScheduled {
		t.Fatalf("expected scheduled post, got %v", scheduled)
	}

	clk.Advance(2 * time.Minute)
	deadline := time.Now().Add(5 * time.Second)
	for {
		current := writer.mustJSON(t, http.MethodGet, path, nil, http.StatusOK)
		if postStatus(t, current) == db.PostStatusPublished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduler did not publish due post: %v", current)
		}
		time.Sleep(100 * time.Millisecond)
	}

	writer.mustJSON(t, http.MethodPut, path, gin.H{"content": "too late"}, http.StatusForbidden)
	writer.mustJSON(t, http.MethodDelete, path, nil, http.StatusForbidden)

	admin := newLocalClient(t, engine)
	admin.mustJSON(t, http.MethodPost, "/auth/login", gin.H{
		"email": "admin@example.test", "password": "admin-pass1",
	}, http.StatusOK)
	debug := admin.mustJSON(t, http.MethodGet, "/admin/api/debug/scheduler", nil, http.StatusOK)
	stats, _ := debug["scheduler"].(map[string]interface{})
	if stats["running"] != true || stats["published"].(float64) < 1 {
		t.Fatalf("unexpected scheduler stats %v", stats)
	}
	if debug["due"] != float64(0) {
		t.Fatalf("expected nothing left due, got %v", debug["due"])
	}

	writer.mustJSON(t, http.MethodPost, "/auth/logout", nil, http.StatusOK)
	writer.mustJSON(t, http.MethodGet, path, nil, http.StatusUnauthorized)
}
