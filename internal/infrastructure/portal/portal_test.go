package portal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

// portalFixture is an in-process stand-in for the portal: one handler per
// endpoint, captured requests, and knobs for the failure scenarios.
type portalFixture struct {
	srv *httptest.Server

	mu           sync.Mutex
	logins       int
	rejectTokens map[string]bool
	configBody   string
	find         int
	findBodies   []string

	configHeaders http.Header
	intentBody    map[string]any
	signedName    string
	putHeaders    http.Header
	putBody       []byte
	fileMetaBody  []map[string]any
	findReqBody   map[string]any
	// content type of every JSON API call, in order, to catch transfer
	// headers leaking past the byte upload.
	jsonContentTypes []string
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	f := &portalFixture{
		rejectTokens: map[string]bool{},
		configBody:   `{"tipos":[{"codigo":"OTRO","id":"tipo-1"},{"codigo":"ZIP_REG-FACT","id":"tipo-9"}]}`,
		findBodies:   []string{loadedBody("cargue-123")},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(loginEndpoint, f.handleLogin)
	mux.HandleFunc(configEndpoint, f.authorized(f.handleConfig))
	mux.HandleFunc(uploadIntentEndpoint, f.authorized(f.handleIntent))
	mux.HandleFunc(signedURLEndpoint, f.authorized(f.handleSignedURL))
	mux.HandleFunc(uploadFilesEndpoint, f.authorized(f.handleUploadFiles))
	mux.HandleFunc(findLoadEndpoint, f.authorized(f.handleFindLoad))
	mux.HandleFunc("/bucket/", f.handlePut)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *portalFixture) client() *Client {
	return New(Config{
		AuthBaseURL: f.srv.URL,
		APIBaseURL:  f.srv.URL,
		PortalURL:   "https://portal.example",
		Credential: domain.Credential{
			Username:         "cuentas@logifarma.co",
			Password:         "secreto",
			OrganizationID:   "org-77",
			OrganizationName: "LOGIFARMA",
			UserID:           "user-11",
		},
		PollMaxAttempts: 10,
		PollInterval:    time.Millisecond,
	})
}

func (f *portalFixture) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logins++
	n := f.logins
	f.mu.Unlock()
	writeJSON(w, map[string]string{
		"access_token": fmt.Sprintf("token-%d", n),
		"token_type":   "bearer",
	})
}

func (f *portalFixture) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		rejected := token == "" || f.rejectTokens[token]
		f.jsonContentTypes = append(f.jsonContentTypes, r.Header.Get("Content-Type"))
		f.mu.Unlock()
		if rejected {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *portalFixture) handleConfig(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.configHeaders = r.Header.Clone()
	body := f.configBody
	f.mu.Unlock()
	_, _ = io.WriteString(w, body)
}

func (f *portalFixture) handleIntent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.intentBody = payload
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *portalFixture) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("fileNames")
	f.mu.Lock()
	f.signedName = name
	f.mu.Unlock()
	writeJSON(w, map[string]string{name: f.srv.URL + "/bucket/" + name})
}

func (f *portalFixture) handlePut(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.putHeaders = r.Header.Clone()
	f.putBody = body
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *portalFixture) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	var payload []map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.fileMetaBody = payload
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *portalFixture) handleFindLoad(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	if f.findReqBody == nil {
		f.findReqBody = payload
	}
	idx := f.find
	if idx >= len(f.findBodies) {
		idx = len(f.findBodies) - 1
	}
	body := f.findBodies[idx]
	f.find++
	f.mu.Unlock()
	_, _ = io.WriteString(w, body)
}

func (f *portalFixture) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *portalFixture) findCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func loadedBody(cargueID string) string {
	return fmt.Sprintf(`{"id":%q,"estado":"CARGADO","archivos":[{"codigo":"f1","estado":"CARGADO","mensajes":[]}]}`, cargueID)
}

func pendingBody(cargueID string) string {
	return fmt.Sprintf(`{"id":%q,"estado":"EN_PROCESO","archivos":[{"codigo":"f1","estado":"EN_PROCESO","mensajes":[]}]}`, cargueID)
}

func writeArchive(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("PK\x03\x04 invoice payload"), 0o600); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}
