package portal

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

var attemptCodePattern = regexp.MustCompile(`^\d{18}$`)

func TestUploadHappyPath(t *testing.T) {
	f := newPortalFixture(t)
	c := f.client()
	c.now = func() time.Time { return time.Date(2026, 8, 30, 10, 30, 0, 250000000, time.UTC) }
	path := writeArchive(t, "FACT-001.zip")

	status, err := c.Upload(context.Background(), path, "FACT-001")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !status.Done() {
		t.Fatalf("expected terminal status, got %q", status.EffectiveState())
	}
	if status.CargueID() != "cargue-123" {
		t.Fatalf("unexpected cargue id: %q", status.CargueID())
	}

	// Organization context travels on the config call, with a parseable
	// transaction id.
	for header, want := range map[string]string{
		"email":            "cuentas@logifarma.co",
		"usuario":          "cuentas@logifarma.co",
		"organizacion":     "org-77",
		"organizacionname": "LOGIFARMA",
		"user-id":          "user-11",
		"roles":            "15574sad",
	} {
		if got := f.configHeaders.Get(header); got != want {
			t.Errorf("config header %s = %q, want %q", header, got, want)
		}
	}
	transactionID := f.configHeaders.Get(transactionIDHeader)
	if _, err := uuid.Parse(transactionID); err != nil {
		t.Fatalf("transaction id %q is not a uuid: %v", transactionID, err)
	}

	// The same transaction id correlates intent, file metadata and polling.
	if got := f.intentBody["id_cargue"]; got != transactionID {
		t.Errorf("intent id_cargue = %v, want %s", got, transactionID)
	}
	if got := f.fileMetaBody[0]["id_cargue"]; got != transactionID {
		t.Errorf("file metadata id_cargue = %v, want %s", got, transactionID)
	}
	if got := f.findReqBody["id"]; got != transactionID {
		t.Errorf("findLoad id = %v, want %s", got, transactionID)
	}

	if got := f.intentBody["id_tipo"]; got != "tipo-9" {
		t.Errorf("intent id_tipo = %v", got)
	}
	if got := f.intentBody["cantidad"]; got != float64(1) {
		t.Errorf("intent cantidad = %v", got)
	}
	nombres, _ := f.intentBody["nombres"].([]any)
	if len(nombres) != 1 || nombres[0] != "FACT-001.zip" {
		t.Errorf("intent nombres = %v", f.intentBody["nombres"])
	}

	// Remote object name is the timestamp code, not the original filename.
	code := f.fileMetaBody[0]["codigo"].(string)
	if code != "202608301030002500.zip" {
		t.Errorf("unexpected remote name: %q", code)
	}
	if !attemptCodePattern.MatchString(code[:len(code)-4]) {
		t.Errorf("remote name stem is not an 18-digit code: %q", code)
	}
	if f.signedName != code {
		t.Errorf("signed url requested for %q, metadata registered %q", f.signedName, code)
	}
	if got := f.fileMetaBody[0]["nombre"]; got != "FACT-001.zip" {
		t.Errorf("file metadata nombre = %v", got)
	}
	if got := f.fileMetaBody[0]["extension"]; got != "zip" {
		t.Errorf("file metadata extension = %v", got)
	}

	// Byte transfer: zip content type, exact payload.
	if got := f.putHeaders.Get("Content-Type"); got != "application/zip" {
		t.Errorf("transfer content type = %q", got)
	}
	if string(f.putBody) != "PK\x03\x04 invoice payload" {
		t.Errorf("transfer body mismatch: %q", f.putBody)
	}

	// JSON calls after the transfer still carry application/json.
	for i, ct := range f.jsonContentTypes {
		if ct != "application/json" {
			t.Errorf("api call %d carried content type %q", i, ct)
		}
	}

	// Day window in dd/mm/yyyy bracketing the whole day.
	if got := f.findReqBody["fecha_inicial"]; got != "30/08/2026 00:00:00" {
		t.Errorf("fecha_inicial = %v", got)
	}
	if got := f.findReqBody["fecha_final"]; got != "30/08/2026 23:59:59" {
		t.Errorf("fecha_final = %v", got)
	}
	if got := f.findReqBody["organizacion"]; got != "org-77" {
		t.Errorf("findLoad organizacion = %v", got)
	}
}

func TestUploadReloginsOnceOnRejectedToken(t *testing.T) {
	f := newPortalFixture(t)
	f.rejectTokens["token-1"] = true
	c := f.client()
	path := writeArchive(t, "FACT-002.zip")

	status, err := c.Upload(context.Background(), path, "FACT-002")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !status.Done() {
		t.Fatalf("expected terminal status, got %q", status.EffectiveState())
	}
	if f.loginCount() != 2 {
		t.Fatalf("expected one re-login, got %d logins", f.loginCount())
	}
}

func TestUploadMissingTypeIsConfigurationError(t *testing.T) {
	f := newPortalFixture(t)
	f.configBody = `{"tipos":[{"codigo":"OTRO","id":"tipo-1"}]}`
	c := f.client()
	path := writeArchive(t, "FACT-003.zip")

	_, err := c.Upload(context.Background(), path, "FACT-003")
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadTypeWithoutIDIsConfigurationError(t *testing.T) {
	f := newPortalFixture(t)
	f.configBody = `{"tipos":[{"codigo":"ZIP_REG-FACT","id":""}]}`
	c := f.client()
	path := writeArchive(t, "FACT-004.zip")

	_, err := c.Upload(context.Background(), path, "FACT-004")
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadMissingFileNeverReachesPortal(t *testing.T) {
	f := newPortalFixture(t)
	c := f.client()

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.zip"), "FACT-005")
	if !domain.IsKind(err, domain.ErrFileNotFound) {
		t.Fatalf("expected file-not-found error, got %v", err)
	}
	if f.loginCount() != 0 {
		t.Fatalf("missing file must fail before any portal call, saw %d logins", f.loginCount())
	}
}

func TestNewAttemptCode(t *testing.T) {
	ts := time.Date(2026, 8, 30, 14, 5, 9, 123456789, time.UTC)
	if got := newAttemptCode(ts); got != "202608301405091234" {
		t.Fatalf("unexpected attempt code: %q", got)
	}
}
