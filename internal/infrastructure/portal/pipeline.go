package portal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

// uploadAttempt is the per-file pipeline state. Created at the start of one
// run, discarded when Upload returns; never persisted.
type uploadAttempt struct {
	filePath      string
	invoiceID     string
	data          []byte
	typeID        string
	transactionID string
	code          string
	signedURL     string
}

// fileName is the original archive name reported to the portal.
func (a *uploadAttempt) fileName() string {
	return filepath.Base(a.filePath)
}

// remoteName is the in-attempt object name used for the byte transfer.
// Derived from a timestamp code rather than the original filename so
// concurrent runs cannot collide on the remote bucket.
func (a *uploadAttempt) remoteName() string {
	return a.code + ".zip"
}

// Upload drives the six-step protocol for one file and returns the final
// load status snapshot. Steps run strictly in order; the first failure aborts
// the rest with no compensating rollback, cleanup of transferred bytes is the
// portal's problem.
func (c *Client) Upload(ctx context.Context, filePath, invoiceID string) (*domain.LoadStatus, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrFileNotFound, "read invoice archive", err)
		}
		return nil, fmt.Errorf("read invoice archive: %w", err)
	}

	att := &uploadAttempt{
		filePath:  filePath,
		invoiceID: invoiceID,
		data:      data,
	}

	if err := c.resolveTypeID(ctx, att); err != nil {
		return nil, err
	}
	if err := c.registerIntent(ctx, att); err != nil {
		return nil, err
	}
	if err := c.obtainTransferURL(ctx, att); err != nil {
		return nil, err
	}
	if err := c.transferBytes(ctx, att); err != nil {
		return nil, err
	}
	if err := c.registerFileMetadata(ctx, att); err != nil {
		return nil, err
	}
	return c.awaitLoad(ctx, att)
}

// resolveTypeID queries the portal application configuration for the
// expected file-type id. Side effect: the organization context headers built
// for this call, including a fresh transaction id, are merged into the
// session for the remainder of the attempt.
func (c *Client) resolveTypeID(ctx context.Context, att *uploadAttempt) error {
	return c.withAuth(ctx, "application_config", func(ctx context.Context) error {
		transactionID := uuid.NewString()

		bag := c.session.headers.Clone()
		bag.Set("email", c.session.cred.Username)
		bag.Set("usuario", c.session.cred.Username)
		bag.Set("organizacion", c.session.cred.OrganizationID)
		bag.Set("organizacionname", c.session.cred.OrganizationName)
		bag.Set("user-id", c.session.cred.UserID)
		// The portal rejects requests without a roles header; the value is
		// not validated.
		bag.Set("roles", "15574sad")
		bag.Set(transactionIDHeader, transactionID)

		query := url.Values{"codigo_aplicacion": {c.cfg.ApplicationCode}}
		var cfg applicationConfig
		if err := c.doJSON(ctx, http.MethodGet, c.cfg.APIBaseURL, configEndpoint, query, nil, &cfg, bag, "application_config"); err != nil {
			return err
		}
		c.session.headers = bag

		for _, tipo := range cfg.Tipos {
			if tipo.Codigo != c.cfg.FileTypeCode {
				continue
			}
			if tipo.ID == "" {
				return domain.WrapError(domain.ErrConfiguration, "application_config",
					fmt.Errorf("type %q found but has no id", c.cfg.FileTypeCode))
			}
			att.typeID = tipo.ID
			att.transactionID = transactionID
			return nil
		}
		return domain.WrapError(domain.ErrConfiguration, "application_config",
			fmt.Errorf("type %q not present in portal configuration", c.cfg.FileTypeCode))
	})
}

// registerIntent declares the upload so the portal allocates the cargue under
// the attempt's transaction id. The same id must reappear at file
// registration and polling; the in-attempt code is minted here.
func (c *Client) registerIntent(ctx context.Context, att *uploadAttempt) error {
	return c.withAuth(ctx, "register_intent", func(ctx context.Context) error {
		att.code = newAttemptCode(c.now())
		payload := uploadIntentRequest{
			IDCargue:     att.transactionID,
			IDTipo:       att.typeID,
			Organizacion: c.session.cred.OrganizationID,
			Cantidad:     1,
			Nombres:      []string{att.fileName()},
		}
		return c.doJSON(ctx, http.MethodPost, c.cfg.APIBaseURL, uploadIntentEndpoint, nil, payload, nil, c.session.headers, "register_intent")
	})
}

func (c *Client) obtainTransferURL(ctx context.Context, att *uploadAttempt) error {
	return c.withAuth(ctx, "signed_url", func(ctx context.Context) error {
		query := url.Values{"fileNames": {att.remoteName()}}
		links := map[string]string{}
		if err := c.doJSON(ctx, http.MethodGet, c.cfg.APIBaseURL, signedURLEndpoint, query, nil, &links, c.session.headers, "signed_url"); err != nil {
			return err
		}
		signed, ok := links[att.remoteName()]
		if !ok || signed == "" {
			return fmt.Errorf("signed_url: no transfer url returned for %s", att.remoteName())
		}
		att.signedURL = signed
		return nil
	})
}

// transferBytes PUTs the archive to the signed URL. Transfer-specific headers
// (zip content type, explicit length) live on a per-call clone of the session
// bag, so nothing leaks into later JSON calls.
func (c *Client) transferBytes(ctx context.Context, att *uploadAttempt) error {
	return c.withAuth(ctx, "transfer", func(ctx context.Context) error {
		slog.Info("portal_transfer", "invoice_id", att.invoiceID, "file", att.fileName(), "bytes", len(att.data))
		bag := c.session.headers.Clone()
		bag.Set("Content-Type", "application/zip")
		return c.putBinary(ctx, att.signedURL, att.data, bag, "transfer")
	})
}

// registerFileMetadata associates the transferred bytes with the earlier
// intent. Size goes out in MB with two-decimal rounding.
func (c *Client) registerFileMetadata(ctx context.Context, att *uploadAttempt) error {
	return c.withAuth(ctx, "register_file", func(ctx context.Context) error {
		payload := []fileMetadataRequest{{
			Codigo:    att.remoteName(),
			Mensajes:  []string{},
			IDArchivo: uuid.NewString(),
			IDCargue:  att.transactionID,
			Extension: "zip",
			Tamano:    formatMegabytes(int64(len(att.data))),
			IDTipo:    att.typeID,
			Nombre:    att.fileName(),
		}}
		return c.doJSON(ctx, http.MethodPost, c.cfg.APIBaseURL, uploadFilesEndpoint, nil, payload, nil, c.session.headers, "register_file")
	})
}

// newAttemptCode derives the in-attempt object name stem from a monotonic
// timestamp: seconds precision plus four sub-second digits.
func newAttemptCode(t time.Time) string {
	return fmt.Sprintf("%s%04d", t.Format("20060102150405"), t.Nanosecond()/100000)
}
