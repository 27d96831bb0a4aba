package httphandler_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/gatecheck/internal/adapter/driven/qrcode"
	"github.com/ericfisherdev/gatecheck/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
	"github.com/ericfisherdev/gatecheck/internal/metrics"
)

const adminPassword = "letmein"

// --- Test doubles ---

// unavailableStore fails the calls a gate scan and the dashboard make.
type unavailableStore struct {
	driven.AttendeeStore
}

func (unavailableStore) MarkUsedByToken(context.Context, string, time.Time, string) (*model.Attendee, bool, error) {
	return nil, false, driven.ErrStorageUnavailable
}

func (unavailableStore) Stats(context.Context) (model.Stats, error) {
	return model.Stats{}, driven.ErrStorageUnavailable
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// --- Fixture ---

type fixture struct {
	handler  http.Handler
	registry *application.RegistryService
	issuer   *application.Issuer
	metrics  *metrics.Metrics
}

type fixtureOptions struct {
	wrapStore func(driven.AttendeeStore) driven.AttendeeStore
	pingErr   error
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	var store driven.AttendeeStore = sqlite.NewAttendeeRepo(db)
	if opts.wrapStore != nil {
		store = opts.wrapStore(store)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	policy := application.StoragePolicy{Timeout: time.Second, RetryDelay: time.Millisecond}
	issuer := application.NewIssuer(nil, "Spring Gala")
	registry := application.NewRegistryService(store, issuer, qrcode.NewLocalRenderer(128), m, policy, logger)

	svc := httphandler.Services{
		CheckIn:  application.NewCheckInService(store, sqlite.NewScanEventRepo(db), m, policy, logger),
		Import:   application.NewImportService(store, issuer, m, policy, logger),
		Registry: registry,
		Auth:     application.NewAuthService(sqlite.NewSessionRepo(db), hash, time.Hour),
		Health:   application.NewHealthService(stubPinger{err: opts.pingErr}, store, "sqlite", "Spring Gala", policy, logger),
	}
	h := httphandler.NewHandler(svc, m, false, logger)

	return &fixture{
		handler:  httphandler.NewServeMux(h, logger),
		registry: registry,
		issuer:   issuer,
		metrics:  m,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"password": adminPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *fixture) add(t *testing.T, name, ticketID string) *model.Attendee {
	t.Helper()
	a, err := f.registry.Add(context.Background(), model.AttendeeDraft{Name: name, TicketID: ticketID})
	require.NoError(t, err)
	return a
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- Gate ---

func TestScan_SuccessThenAlreadyUsed(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	a := f.add(t, "Ada Lovelace", "T1")
	cred, err := f.issuer.Credential(*a)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: cred.Payload}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[httphandler.CheckInResponse](t, rec)
	assert.True(t, first.Success)
	assert.Equal(t, "success", first.Status)
	require.NotNil(t, first.Attendee)
	assert.Equal(t, "Ada Lovelace", first.Attendee.Name)
	assert.Equal(t, "T1", first.Attendee.TicketID)
	require.NotNil(t, first.ScanTime)

	for range 2 {
		rec = f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: cred.Token}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		again := decode[httphandler.CheckInResponse](t, rec)
		assert.False(t, again.Success)
		assert.Equal(t, "already_used", again.Status)
		require.NotNil(t, again.ScanTime)
		assert.Equal(t, *first.ScanTime, *again.ScanTime)
	}
}

func TestScan_BusinessOutcomes(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "empty", payload: "   ", want: "malformed"},
		{name: "json without token", payload: `{"name":"Ada"}`, want: "malformed"},
		{name: "unknown token", payload: strings.Repeat("ab", 16), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: tt.payload}, "")
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[httphandler.CheckInResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestScan_InvalidBody(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScan_StorageUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		wrapStore: func(s driven.AttendeeStore) driven.AttendeeStore { return unavailableStore{s} },
	})

	rec := f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: strings.Repeat("cd", 16)}, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.NotContains(t, resp["error"], "storage unavailable: ")
}

func TestManualCheckIn(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.add(t, "Ann Smith", "T10")
	f.add(t, "Ann Jones", "T11")

	rec := f.do(t, http.MethodPost, "/api/v1/checkin/manual", httphandler.ManualCheckInRequest{Name: "ann"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.CheckInResponse](t, rec)
	assert.Equal(t, "ambiguous_or_not_found", resp.Status)
	assert.Equal(t, 2, resp.Matches)

	rec = f.do(t, http.MethodPost, "/api/v1/checkin/manual", httphandler.ManualCheckInRequest{Name: "ann", TicketID: "T11"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[httphandler.CheckInResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.Attendee)
	assert.Equal(t, "Ann Jones", resp.Attendee.Name)

	rec = f.do(t, http.MethodPost, "/api/v1/checkin/manual", httphandler.ManualCheckInRequest{}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[httphandler.CheckInResponse](t, rec)
	assert.Equal(t, "ambiguous_or_not_found", resp.Status)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		f.add(t, "Ada", "T1")

		rec := f.do(t, http.MethodGet, "/api/v1/health", nil, "")

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[httphandler.HealthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "sqlite", resp.Backend)
		assert.Equal(t, "Spring Gala", resp.EventLabel)
		require.NotNil(t, resp.Stats)
		assert.Equal(t, 1, resp.Stats.Total)
		assert.Equal(t, 1, resp.Stats.Pending)
	})

	t.Run("degraded", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{pingErr: errors.New("disk gone")})

		rec := f.do(t, http.MethodGet, "/api/v1/health", nil, "")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[httphandler.HealthResponse](t, rec)
		assert.Equal(t, "degraded", resp.Status)
		assert.Nil(t, resp.Stats)
		assert.NotContains(t, resp.Error, "disk gone")
	})
}

// --- Admin session ---

func TestAdminRoutes_RequireSession(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	for _, path := range []string{
		"/api/v1/admin/attendees",
		"/api/v1/admin/stats",
		"/api/v1/admin/export.csv",
		"/api/v1/admin/scan-events",
	} {
		rec := f.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = f.do(t, http.MethodGet, path, nil, "not-a-session")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	rec := f.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"password": adminPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == httphandler.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/session", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/logout", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/session", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Admin registry ---

func TestAttendeeCRUD(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/attendees", httphandler.AttendeeRequest{Name: " Grace Hopper ", TicketID: "T7", Email: "grace@example.com"}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.AttendeeResponse](t, rec)
	assert.Equal(t, "Grace Hopper", created.Name)
	assert.Equal(t, "unused", created.State)
	assert.Nil(t, created.ScanTime)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/attendees", httphandler.AttendeeRequest{Name: "Other", TicketID: "T7"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/attendees", httphandler.AttendeeRequest{Name: "", TicketID: "T8"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/attendees", httphandler.AttendeeRequest{Name: "Bad Mail", TicketID: "T9", Email: "nope"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/v1/admin/attendees/" + jsonInt(created.ID)

	rec = f.do(t, http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	newName := "Rear Admiral Hopper"
	rec = f.do(t, http.MethodPatch, path, httphandler.AttendeePatchRequest{Name: &newName}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[httphandler.AttendeeResponse](t, rec)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, "T7", updated.TicketID)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees?q=admiral", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]httphandler.AttendeeResponse](t, rec), 1)

	rec = f.do(t, http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees/abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCheckInAndReset(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")
	base := "/api/v1/admin/attendees/" + jsonInt(a.ID)

	rec := f.do(t, http.MethodPost, base+"/checkin", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[httphandler.CheckInResponse](t, rec).Status)

	rec = f.do(t, http.MethodPost, base+"/checkin", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_used", decode[httphandler.CheckInResponse](t, rec).Status)

	rec = f.do(t, http.MethodPost, base+"/reset", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, base, nil, token)
	got := decode[httphandler.AttendeeResponse](t, rec)
	assert.False(t, got.Used)
	assert.Nil(t, got.ScanTime)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/attendees/9999/checkin", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetAllAndClearAll(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")
	f.add(t, "Bob", "T2")
	f.do(t, http.MethodPost, "/api/v1/admin/attendees/"+jsonInt(a.ID)+"/checkin", nil, token)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/stats", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, httphandler.StatsResponse{Total: 2, Used: 1, Pending: 1}, decode[httphandler.StatsResponse](t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/admin/reset", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[httphandler.CountResponse](t, rec).Count)

	rec = f.do(t, http.MethodPost, "/api/v1/admin/clear", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[httphandler.CountResponse](t, rec).Count)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestStats_StorageUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		wrapStore: func(s driven.AttendeeStore) driven.AttendeeStore { return unavailableStore{s} },
	})
	token := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/stats", nil, token)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// --- Import ---

func TestImport_JSONRows(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	body := httphandler.ImportRequest{Rows: []map[string]any{
		{"Full Name": "Ada", "Ticket ID": "T1"},
		{"name": "Bob", "ticket_number": 1002.0, "Email": "bob@example.com"},
		{"Full Name": "", "Ticket ID": "T3"},
		{"Full Name": "Ada Again", "Ticket ID": "T1"},
	}}

	rec := f.do(t, http.MethodPost, "/api/v1/admin/import", body, token)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.ImportResponse](t, rec)
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, 2, resp.Imported)
	assert.False(t, resp.Aborted)
	require.Len(t, resp.Rejected, 2)
	assert.Equal(t, 2, resp.Rejected[0].Index)
	assert.Equal(t, application.ReasonMissingName, resp.Rejected[0].Reason)
	assert.Equal(t, 3, resp.Rejected[1].Index)
	assert.Equal(t, application.ReasonDuplicateTicket, resp.Rejected[1].Reason)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees?q=1002", nil, token)
	found := decode[[]httphandler.AttendeeResponse](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, "Bob", found[0].Name)
}

func TestImport_Upload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		wantCode int
		imported int
	}{
		{
			name:     "csv",
			filename: "roll.csv",
			content:  "Name,Ticket ID,Email\nAda,T1,ada@example.com\n,,\nBob,T2,\n",
			wantCode: http.StatusOK,
			imported: 2,
		},
		{
			name:     "unsupported",
			filename: "roll.txt",
			content:  "Ada,T1",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{})
			token := f.login(t)

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", tt.filename)
			require.NoError(t, err)
			_, err = part.Write([]byte(tt.content))
			require.NoError(t, err)
			require.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/import", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.imported, decode[httphandler.ImportResponse](t, rec).Imported)
			}
		})
	}
}

func TestImport_NoRows(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/v1/admin/import", httphandler.ImportRequest{}, token)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Exports and credentials ---

func TestExportCSV(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")
	f.add(t, "Bob, Jr.", "T2")
	f.do(t, http.MethodPost, "/api/v1/admin/attendees/"+jsonInt(a.ID)+"/checkin", nil, token)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/export.csv", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Name", "Ticket ID", "Email", "Scanned", "Scan Time", "Photo"}, records[0])
	// Newest first.
	assert.Equal(t, "Bob, Jr.", records[1][0])
	assert.Equal(t, "No", records[1][3])
	assert.Equal(t, "Ada", records[2][0])
	assert.Equal(t, "Yes", records[2][3])
	assert.NotEmpty(t, records[2][4])
	assert.Empty(t, records[2][5])
}

func TestExportCSV_Empty(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/export.csv", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Name,Ticket ID,Email,Scanned,Scan Time,Photo\n", rec.Body.String())
}

func TestExportJSON(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	f.add(t, "Ada", "T1")
	f.add(t, "Bob", "T2")

	rec := f.do(t, http.MethodGet, "/api/v1/admin/export.json", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]httphandler.AttendeeResponse](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[0].Name)
}

// --- Photos ---

var pngSignature = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func (f *fixture) putPhoto(t *testing.T, id int64, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "face.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, httphandler.PhotoPath(id), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestPhotoEndpoints(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")
	path := httphandler.PhotoPath(a.ID)

	rec := f.do(t, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.putPhoto(t, a.ID, pngSignature, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := decode[httphandler.PhotoResponse](t, rec)
	assert.Equal(t, "image/png", stored.ContentType)
	assert.Equal(t, path, stored.URL)

	rec = f.do(t, http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pngSignature, rec.Body.Bytes())

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees/"+jsonInt(a.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[httphandler.AttendeeResponse](t, rec)
	require.NotNil(t, got.PhotoURL)
	assert.Equal(t, path, *got.PhotoURL)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/export.csv", nil, token)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, path, records[1][5])

	rec = f.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPhotoEndpoints_Rejections(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")

	tests := []struct {
		name       string
		id         int64
		data       []byte
		token      string
		wantStatus int
	}{
		{name: "not an image", id: a.ID, data: []byte("hello"), token: token, wantStatus: http.StatusBadRequest},
		{name: "empty", id: a.ID, data: nil, token: token, wantStatus: http.StatusBadRequest},
		{name: "unknown attendee", id: 999, data: pngSignature, token: token, wantStatus: http.StatusNotFound},
		{name: "no session", id: a.ID, data: pngSignature, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.putPhoto(t, tt.id, tt.data, tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestPhotoEndpoints_RawBody(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	a := f.add(t, "Ada", "T1")

	req := httptest.NewRequest(http.MethodPut, httphandler.PhotoPath(a.ID), bytes.NewReader(pngSignature))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	photo, err := f.registry.Photo(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, pngSignature, photo.Data)
}

func TestCredentialEndpoints(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/v1/admin/credentials.zip", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	a := f.add(t, "Ada Lovelace", "T-1")
	base := "/api/v1/admin/attendees/" + jsonInt(a.ID)

	rec = f.do(t, http.MethodGet, base+"/credential", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	cred := decode[httphandler.CredentialResponse](t, rec)
	assert.Equal(t, a.Token, cred.Token)
	payload, err := application.DecodePayload(cred.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Spring Gala", payload.EventLabel)

	rec = f.do(t, http.MethodGet, base+"/qr.png", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = f.do(t, http.MethodGet, "/api/v1/admin/credentials.zip", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "T_1_Ada_Lovelace.png", zr.File[0].Name)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/attendees/9999/qr.png", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanEvents(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := f.login(t)
	f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: "{}"}, "")
	f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: strings.Repeat("ef", 16)}, "")

	rec := f.do(t, http.MethodGet, "/api/v1/admin/scan-events?limit=1", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]httphandler.ScanEventResponse](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "unknown", events[0].Status)
	assert.Equal(t, "scan", events[0].Source)

	rec = f.do(t, http.MethodGet, "/api/v1/admin/scan-events?limit=zero", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Middleware and metrics ---

func TestRequestID(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	rec := f.do(t, http.MethodGet, "/api/v1/health", nil, "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "gate-7")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "gate-7", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.do(t, http.MethodPost, "/api/v1/scan", httphandler.ScanRequest{Payload: ""}, "")

	rec := f.do(t, http.MethodGet, "/metrics", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gatecheck_checkins_total{source="scan",status="malformed"} 1`)
	assert.Contains(t, body, `route="POST /api/v1/scan"`)
}

func jsonInt(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
