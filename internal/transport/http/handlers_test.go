package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rdv-service/internal/kv"
	"rdv-service/internal/localstore"
	"rdv-service/internal/middleware"
	"rdv-service/internal/mode"
	"rdv-service/internal/service"
	rdvsync "rdv-service/internal/sync"
	"rdv-service/internal/testutil"
	"rdv-service/pkg/models"
)

const (
	testPassword = "letmein"
	testToken    = "svc-token-123456"
)

var testNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

type testServer struct {
	app     *fiber.App
	session string
	local  *localstore.Store
	remote *testutil.FakeRemote
	mode   *mode.Selector
}

func newTestServer(t *testing.T, locked bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	now := func() time.Time { return testNow }

	mem := kv.NewMemory(0)
	local := localstore.New(mem, logger, localstore.WithClock(now))
	require.NoError(t, local.Init(context.Background()))

	fake := testutil.NewFakeRemote()
	sel := mode.New(locked, true, fake, logger)
	repo := service.NewAppointmentService(local, fake, sel, logger).WithClock(now)

	gate, err := service.NewAuthGate(mem, testPassword, "", "development", logger)
	require.NoError(t, err)
	rec := rdvsync.NewReconcileService(repo, fake, nil, rdvsync.Options{RetentionDays: 30, MaintenanceHour: 3}, logger)

	h := NewHandler(repo, gate, rec, 30, logger)
	app := NewApp(h, RouterConfig{AllowedOrigins: "http://localhost:3000", ServiceToken: testToken})
	return &testServer{app: app, local: local, remote: fake, mode: sel}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.send(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

// send attaches the session cookie of the last login, if any.
func (s *testServer) send(req *http.Request) (*http.Response, error) {
	if s.session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: s.session})
	}
	return s.app.Test(req, -1)
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	resp, body := s.do(t, "POST", "/auth/login", map[string]string{"password": testPassword})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, cookie.Value, body["token"])
	s.session = cookie.Value
}

// anonymous is a second client on the same server with no session.
func (s *testServer) anonymous() *testServer {
	return &testServer{app: s.app, local: s.local, remote: s.remote, mode: s.mode}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, false)

	resp, _ := s.do(t, "GET", "/v1/appointments", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/auth/login", map[string]string{"password": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	s.login(t)
	_, body := s.do(t, "GET", "/auth/status", nil)
	assert.Equal(t, true, body["authenticated"])

	resp, _ = s.do(t, "GET", "/v1/appointments", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, "GET", "/v1/appointments", nil, "Authorization", "Bearer "+s.session)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/auth/logout", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, "GET", "/v1/appointments", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_SessionIsPerClient(t *testing.T) {
	s := newTestServer(t, true)
	s.login(t)
	resp, body := s.do(t, "POST", "/v1/appointments", models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Martin"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	other := s.anonymous()
	_, body = other.do(t, "GET", "/auth/status", nil)
	assert.Equal(t, false, body["authenticated"])

	resp, _ = other.do(t, "DELETE", "/v1/appointments/"+id, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = other.do(t, "GET", "/v1/export", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp, _ = other.do(t, "GET", "/v1/appointments", nil, "Authorization", "Bearer forged")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// logging out is reserved to the session holder
	resp, _ = other.do(t, "POST", "/auth/logout", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	assert.True(t, s.local.Has(context.Background(), id))
	_, body = s.do(t, "GET", "/auth/status", nil)
	assert.Equal(t, true, body["authenticated"])
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t, false)
	s.login(t)

	resp, body := s.do(t, "POST", "/v1/appointments", models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Martin"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "remote", body["source"])
	assert.Equal(t, "doc1", body["id"])

	_, body = s.do(t, "GET", "/v1/appointments?date=2024-05-02", nil)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, false, body["offline"])

	_, body = s.do(t, "GET", "/v1/appointments?q=mart", nil)
	assert.Equal(t, float64(1), body["count"])
}

func TestCreate_Invalid(t *testing.T) {
	s := newTestServer(t, false)
	s.login(t)

	resp, _ := s.do(t, "POST", "/v1/appointments", models.AppointmentRequest{Date: "02/05/2024", Time: "10:00", ClientName: "Martin"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestList_OfflineFallback(t *testing.T) {
	s := newTestServer(t, false)
	s.login(t)
	_, err := s.local.Add(context.Background(), models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Local"})
	require.NoError(t, err)
	s.remote.SetFail(true)

	_, body := s.do(t, "GET", "/v1/appointments", nil)
	assert.Equal(t, "offline", body["source"])
	assert.Equal(t, true, body["offline"])
	assert.Equal(t, float64(1), body["count"])
}

func TestStatusAndPaymentRoutes(t *testing.T) {
	s := newTestServer(t, true)
	s.login(t)
	ctx := context.Background()
	id, err := s.local.Add(ctx, models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Local"})
	require.NoError(t, err)

	resp, body := s.do(t, "POST", "/v1/appointments/"+id+"/status", map[string]string{"status": "completed"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "local", body["source"])

	resp, _ = s.do(t, "POST", "/v1/appointments/"+id+"/payment", map[string]string{"paymentStatus": "paid"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	a, _ := s.local.Get(ctx, id)
	assert.Equal(t, models.StatusCompleted, a.Status)
	assert.Equal(t, models.PaymentPaid, a.PaymentStatus)

	resp, _ = s.do(t, "PATCH", "/v1/appointments/"+id, map[string]string{"notes": "late"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, "PATCH", "/v1/appointments/rdv_missing", map[string]string{"notes": "late"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/v1/appointments/"+id+"/status", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, "DELETE", "/v1/appointments/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, s.local.Has(ctx, id))
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, true)
	s.login(t)
	ctx := context.Background()
	_, err := s.local.Add(ctx, models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Local"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/v1/export", nil)
	resp, err := s.send(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "rdv_export_")
	blob, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"totalRecords": 1`)

	require.NoError(t, s.local.SaveAll(ctx, localstore.Records{}))

	// multipart upload
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "export.json")
	require.NoError(t, err)
	_, err = part.Write(blob)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req = httptest.NewRequest("POST", "/v1/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err = s.send(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, s.local.GetAll(ctx), 1)

	// raw body, malformed
	req = httptest.NewRequest("POST", "/v1/import", strings.NewReader("[1,2]"))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.send(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Len(t, s.local.GetAll(ctx), 1)
}

func TestStatsStorageCleanup(t *testing.T) {
	s := newTestServer(t, true)
	s.login(t)
	ctx := context.Background()
	require.NoError(t, s.local.Insert(ctx, models.Appointment{ID: "old", Date: "2023-01-01", Time: "09:00", ClientName: "Old", Status: models.StatusCompleted, PaymentStatus: models.PaymentPaid}))

	_, body := s.do(t, "GET", "/v1/stats", nil)
	appts := body["appointments"].(map[string]interface{})
	assert.Equal(t, float64(1), appts["total"])
	assert.Equal(t, float64(1), appts["paidCount"])

	_, body = s.do(t, "GET", "/v1/storage", nil)
	assert.Greater(t, body["bytes"].(float64), float64(0))

	resp, _ := s.do(t, "POST", "/v1/cleanup?days=-1", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	_, body = s.do(t, "POST", "/v1/cleanup", nil)
	assert.Equal(t, float64(1), body["removed"])
}

func TestSyncRoutes(t *testing.T) {
	t.Run("locked conflicts", func(t *testing.T) {
		s := newTestServer(t, true)
		s.login(t)
		resp, _ := s.do(t, "POST", "/v1/sync", nil)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("pushes pending", func(t *testing.T) {
		s := newTestServer(t, false)
		s.login(t)
		_, err := s.local.Add(context.Background(), models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Local"})
		require.NoError(t, err)

		resp, body := s.do(t, "POST", "/v1/sync", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["synced"])
		assert.Len(t, s.remote.Docs(), 1)
	})

	t.Run("upload without bucket", func(t *testing.T) {
		s := newTestServer(t, false)
		s.login(t)
		resp, _ := s.do(t, "POST", "/v1/export/upload", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestNetworkSignals(t *testing.T) {
	s := newTestServer(t, false)

	resp, _ := s.do(t, "POST", "/svc/v1/network/offline", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/svc/v1/network/offline", nil, "X-Service-Token", testToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, s.mode.Online())

	_, err := s.local.Add(context.Background(), models.AppointmentRequest{Date: "2024-05-02", Time: "10:00", ClientName: "Local"})
	require.NoError(t, err)

	resp, body := s.do(t, "POST", "/svc/v1/network/online", nil, "Authorization", "Bearer "+testToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, s.mode.Online())
	assert.Equal(t, float64(1), body["synced"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)
	resp, body := s.do(t, "GET", "/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	m := body["mode"].(map[string]interface{})
	assert.Equal(t, true, m["locked"])
	assert.Equal(t, false, m["remotePermitted"])
}
