package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// transactionIDHeader correlates intent registration, file registration and
// status polling for one upload attempt.
const transactionIDHeader = "transaction-id"

// session holds the bearer token and the header bag shared by every call of
// one pipeline run. Login resets the bag; the config step enriches it with
// organization context for the rest of the attempt.
type session struct {
	cred      domain.Credential
	portalURL string

	token     string
	tokenKind string
	headers   *headerBag
}

func newSession(cred domain.Credential, portalURL string) *session {
	return &session{
		cred:      cred,
		portalURL: portalURL,
		headers:   newHeaderBag(),
	}
}

func (s *session) baseHeaders() *headerBag {
	bag := newHeaderBag()
	bag.Set("accept", "application/json, text/plain, */*")
	bag.Set("accept-language", "en-US,en;q=0.9")
	bag.Set("cache-control", "no-cache")
	bag.Set("content-type", "application/json")
	bag.Set("origin", s.portalURL)
	bag.Set("pragma", "no-cache")
	bag.Set("referer", s.portalURL)
	bag.Set("user-agent", defaultUserAgent)
	return bag
}

func (s *session) authenticated() bool {
	return s.token != ""
}

func (s *session) clearToken() {
	s.token = ""
}

func (s *session) transactionID() string {
	return s.headers.Get(transactionIDHeader)
}

// Login authenticates against the portal and rebuilds the session headers
// from scratch: fresh base headers plus the Authorization header. Any context
// headers accumulated by a previous attempt are discarded.
func (c *Client) Login(ctx context.Context) error {
	payload := loginRequest{
		Username: c.session.cred.Username,
		Password: c.session.cred.Password,
	}

	bag := c.session.baseHeaders()
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.AuthBaseURL, loginEndpoint, nil, payload, &resp, bag, "login"); err != nil {
		if isAuthFailure(err) {
			return domain.WrapError(domain.ErrAuthentication, "login", err)
		}
		return err
	}
	if resp.AccessToken == "" {
		return domain.WrapError(domain.ErrAuthentication, "login", errors.New("access_token missing in response"))
	}

	kind := resp.TokenType
	if kind == "" {
		kind = "Bearer"
	}
	kind = capitalize(kind)

	c.session.token = resp.AccessToken
	c.session.tokenKind = kind
	bag.Set("Authorization", fmt.Sprintf("%s %s", kind, resp.AccessToken))
	c.session.headers = bag

	slog.Info("portal_login_ok", "username", c.session.cred.Username, "token_kind", kind)
	return nil
}

// withAuth runs a portal call under the session token. A missing token
// triggers an initial login. A 401 triggers exactly one re-login and one
// replay; a second 401, or any other error, propagates unchanged. Never more
// than two invocations of call per logical operation.
func (c *Client) withAuth(ctx context.Context, operation string, call func(context.Context) error) error {
	if !c.session.authenticated() {
		slog.Info("portal_initial_login", "operation", operation)
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := call(ctx)
	if err == nil || !isAuthFailure(err) {
		return err
	}

	slog.Warn("portal_token_rejected", "operation", operation)
	c.session.clearToken()
	if err := c.Login(ctx); err != nil {
		return err
	}
	return call(ctx)
}

func isAuthFailure(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
