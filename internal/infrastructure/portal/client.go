package portal

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

// Portal endpoint paths. Login lives on the auth host, everything else on the
// API host.
const (
	loginEndpoint        = "/login/users/login"
	configEndpoint       = "/mutual-api-rfds/api/v1/rips-api/application"
	uploadIntentEndpoint = "/mutual-api-rfds/api/v1/rips-api/upload"
	uploadFilesEndpoint  = "/mutual-api-rfds/api/v1/rips-api/upload-files"
	signedURLEndpoint    = "/mutual-api-rfds/api/v1/rips-api/signedUrl/getUrlUploadFile"
	findLoadEndpoint     = "/mutual-api-rfds/api/v1/rips-api/findLoad"
)

type Config struct {
	AuthBaseURL string
	APIBaseURL  string
	// PortalURL is sent as Origin/Referer; the portal's edge rejects requests
	// without them.
	PortalURL string

	Credential domain.Credential

	// ApplicationCode selects the portal application whose configuration is
	// queried ("REG-FACT"); FileTypeCode is the type expected inside it
	// ("ZIP_REG-FACT").
	ApplicationCode string
	FileTypeCode    string

	PollMaxAttempts int
	PollInterval    time.Duration

	RequestTimeout    time.Duration
	RequestsPerSecond float64

	// PollObserver, when set, receives the number of status fetches one
	// attempt needed before returning or timing out.
	PollObserver func(attempts int)
}

func (c Config) withDefaults() Config {
	out := c
	if out.ApplicationCode == "" {
		out.ApplicationCode = "REG-FACT"
	}
	if out.FileTypeCode == "" {
		out.FileTypeCode = "ZIP_REG-FACT"
	}
	if out.PollMaxAttempts <= 0 {
		out.PollMaxAttempts = 10
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 6 * time.Second
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 60 * time.Second
	}
	return out
}

// Client is a single-worker portal client. It holds the session state (token,
// header bag, in-attempt transaction id), so two pipeline runs must not
// interleave on the same instance; run independent clients per worker.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	session    *session

	now func() time.Time
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	cfg.AuthBaseURL = strings.TrimRight(cfg.AuthBaseURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    limiter,
		session:    newSession(cfg.Credential, cfg.PortalURL),
		now:        time.Now,
	}
}
