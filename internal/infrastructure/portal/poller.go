package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

// PollTimeoutError reports bounded polling that never observed a terminal
// snapshot. It keeps the last observed state and the correlation id so the
// caller can report a precise reason.
type PollTimeoutError struct {
	Attempts      int
	LastState     string
	TransactionID string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("después de %d intentos, no se cargó la factura. Último estado de API fue %q. El ID de Cargue es %s.",
		e.Attempts, e.LastState, e.TransactionID)
}

func (e *PollTimeoutError) Unwrap() error {
	return domain.ErrPollTimeout
}

// awaitLoad polls findLoad for the attempt's transaction id until the first
// file result reaches the loaded state. The snapshot window is the current
// calendar day. At most PollMaxAttempts fetches with PollInterval sleeps
// between them, never after the last; context cancellation aborts the wait.
func (c *Client) awaitLoad(ctx context.Context, att *uploadAttempt) (*domain.LoadStatus, error) {
	today := c.now()
	payload := findLoadRequest{
		ID:           att.transactionID,
		FechaInicial: today.Format("02/01/2006") + " 00:00:00",
		FechaFinal:   today.Format("02/01/2006") + " 23:59:59",
		Organizacion: c.session.cred.OrganizationID,
	}

	var last *domain.LoadStatus
	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		var status domain.LoadStatus
		err := c.withAuth(ctx, "find_load", func(ctx context.Context) error {
			status = domain.LoadStatus{}
			return c.doJSON(ctx, http.MethodPost, c.cfg.APIBaseURL, findLoadEndpoint, nil, payload, &status, c.session.headers, "find_load")
		})
		if err != nil {
			return nil, err
		}
		last = &status

		if status.Done() {
			c.observePoll(attempt)
			return last, nil
		}
		slog.Info("portal_load_pending",
			"invoice_id", att.invoiceID,
			"transaction_id", att.transactionID,
			"state", status.EffectiveState(),
			"attempt", attempt,
			"max_attempts", c.cfg.PollMaxAttempts,
		)

		if attempt == c.cfg.PollMaxAttempts {
			break
		}
		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.observePoll(c.cfg.PollMaxAttempts)
	return nil, &PollTimeoutError{
		Attempts:      c.cfg.PollMaxAttempts,
		LastState:     last.EffectiveState(),
		TransactionID: att.transactionID,
	}
}

func (c *Client) observePoll(attempts int) {
	if c.cfg.PollObserver != nil {
		c.cfg.PollObserver(attempts)
	}
}
