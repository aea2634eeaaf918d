package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-bulk/internal/config"
	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/database"
	"whatsapp-bulk/internal/delivery"
	"whatsapp-bulk/internal/history"
	"whatsapp-bulk/internal/media"
	"whatsapp-bulk/internal/whatsapp"
	"whatsapp-bulk/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessions struct {
	mu        sync.Mutex
	connected bool
	sent      []string
}

func (f *fakeSessions) Send(_ context.Context, to string, _ *whatsapp.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSessions) PersistCredentials(context.Context) error { return nil }
func (f *fakeSessions) Close()                                   {}

func (f *fakeSessions) Current() whatsapp.Session {
	if f.connected {
		return f
	}
	return nil
}

func (f *fakeSessions) State() whatsapp.State {
	if f.connected {
		return whatsapp.StateOpen
	}
	return whatsapp.StateOpening
}

type noThumbs struct{}

func (noThumbs) ImageThumbnail(context.Context, string) ([]byte, error) { return nil, nil }
func (noThumbs) VideoThumbnail(context.Context, string) ([]byte, error) { return nil, nil }

type finishedRuns struct {
	runs []*delivery.Summary
}

func (f *finishedRuns) RunFinished(s *delivery.Summary) { f.runs = append(f.runs, s) }

type testServer struct {
	router    *gin.Engine
	sessions  *fakeSessions
	contacts  *contacts.Store
	library   *media.Library
	history   *history.Store
	broadcast *BroadcastHandler
	finished  *finishedRuns
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	dir := t.TempDir()

	library, err := media.NewLibrary(filepath.Join(dir, "assets"), log)
	require.NoError(t, err)
	db, err := database.InitGorm(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(dir, "history.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ts := &testServer{
		sessions: &fakeSessions{connected: true},
		contacts: contacts.NewStore(),
		library:  library,
		history:  history.NewStore(db, log),
		finished: &finishedRuns{},
	}
	deliverer := delivery.NewDeliverer(library, media.NewBuilder(noThumbs{}, log), delivery.Options{CountryCode: "91"}, log)
	ts.broadcast = NewBroadcastHandler(ts.sessions, deliverer, ts.contacts, ts.history, ts.finished, log)
	ts.router = NewRouter(Handlers{
		Contacts:  NewContactHandler(ts.contacts, nil, "91"),
		Media:     NewMediaHandler(library, 1, 3, log),
		Broadcast: ts.broadcast,
		Dashboard: NewDashboardHandler(ts.sessions, ts.contacts, library, ts.broadcast),
		AssetsDir: library.Dir(),
	}, log)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) sendMessages(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/send-messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile("mediaFiles", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload-media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSendMessagesNotConnected(t *testing.T) {
	ts := newTestServer(t)
	ts.sessions.connected = false

	w := ts.sendMessages(t, `{"messageTemplate":"Hi {name}","mode":"text"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"WhatsApp not connected"}`, w.Body.String())
	assert.Empty(t, ts.sessions.sent)
}

func TestSendMessagesRunsAndRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.contacts.Replace([]contacts.Contact{
		{Number: "9876543210", Name: "Asha"},
		{Number: "12345"},
	})

	w := ts.sendMessages(t, `{"messageTemplate":"Hi {name}","mode":"text"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, models.SendSummary{Total: 2, Success: 1, Failed: 1}, resp.Summary)
	assert.Equal(t, []string{"919876543210"}, resp.SuccessNumbers)
	assert.Equal(t, []string{"12345"}, resp.FailedNumbers)
	assert.Equal(t, []string{"919876543210@s.whatsapp.net"}, ts.sessions.sent)

	require.Len(t, ts.finished.runs, 1)
	run, err := ts.history.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Hi {name}", run.Template)
	assert.Equal(t, "text", run.Mode)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.RunID)
}

func TestSendMessagesEmptyBodyDefaultsToAll(t *testing.T) {
	ts := newTestServer(t)
	ts.contacts.Replace([]contacts.Contact{{Number: "9876543210"}})

	w := ts.sendMessages(t, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ts.sessions.sent, 1)
}

func TestSendMessagesRejectsConcurrentRun(t *testing.T) {
	ts := newTestServer(t)
	ts.broadcast.running.Lock()
	defer ts.broadcast.running.Unlock()

	w := ts.sendMessages(t, `{"messageTemplate":"x"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, ts.broadcast.Busy())
}

func TestGetRunNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadListAndDeleteMedia(t *testing.T) {
	ts := newTestServer(t)
	img := pngBytes(t)

	w := ts.do(uploadRequest(t, map[string][]byte{
		"photo.png": img,
		"notes.txt": []byte("hello"),
		"fake.jpg":  []byte("definitely not a jpeg"),
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var res models.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Equal(t, []string{"photo.png"}, res.Files)
	assert.Contains(t, res.Rejected, "notes.txt")
	assert.Contains(t, res.Rejected, "fake.jpg")

	w = ts.do(uploadRequest(t, map[string][]byte{"photo.png": img}))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"photo (1).png"}, res.Files)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/media", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var files []models.MediaFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 2)
	assert.Equal(t, "photo (1).png", files[0].Name)
	assert.Equal(t, "image", files[0].Kind)
	assert.NotEmpty(t, files[0].SizeHuman)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/api/media/photo.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := os.Stat(filepath.Join(ts.library.Dir(), "photo.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/api/media/photo.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadLimits(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(uploadRequest(t, map[string][]byte{
		"a.png": pngBytes(t), "b.png": pngBytes(t), "c.png": pngBytes(t), "d.png": pngBytes(t),
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := append(pngBytes(t), make([]byte, 2<<20)...)
	w = ts.do(uploadRequest(t, map[string][]byte{"big.png": big}))
	var res models.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.OK)
	assert.Contains(t, res.Rejected, "big.png")

	w = ts.do(uploadRequest(t, map[string][]byte{}))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.OK)
	assert.Equal(t, "No files", res.Message)
}

func TestDeleteMediaRejectsTraversal(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodDelete, "/api/media/..%5Csecret", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Invalid file path"}`, w.Body.String())
}

func TestStatusAndContacts(t *testing.T) {
	ts := newTestServer(t)
	ts.contacts.Replace([]contacts.Contact{{Number: "9876543210", Name: "Asha"}, {Number: "12"}})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status models.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.Status{State: "open", Connected: true, Contacts: 2}, status)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
	assert.JSONEq(t, `[{"Number":"9876543210","Name":"Asha"},{"Number":"12"}]`, w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/contacts/export", nil))
	assert.Equal(t, "Number,Name,Recipient,Valid\n9876543210,Asha,919876543210,yes\n12,,,no\n", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodOptions, "/api/send-messages", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
