package domain

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// LedgerRecord tracks one invoice across a batch run. Every mutation other
// than the timestamp itself refreshes LastMutatedAt, so LastMutatedAt is
// always >= StartedAt.
type LedgerRecord struct {
	InvoiceID     string
	CargueID      string
	Status        string
	Errors        []string
	ReceivedAt    time.Time
	StartedAt     time.Time
	LastMutatedAt time.Time
}

func (r *LedgerRecord) touch(now time.Time) {
	if now.After(r.LastMutatedAt) {
		r.LastMutatedAt = now
	}
}

// ReportRow is the flat projection of a record for tabular export. This is
// the only place calendar conversion to the report timezone happens.
type ReportRow struct {
	InvoiceID string
	CargueID  string
	Status    string
	Errors    string
	Day       string
	Month     string
	Year      int
	Moment    string
}

// Run is the in-memory ledger for one batch execution. Records are keyed by
// invoice id with insertion order preserved. Mutations are serialized by a
// run-level mutex; the worker owns exactly one run at a time.
type Run struct {
	Date time.Time

	mu      sync.Mutex
	records map[string]*LedgerRecord
	order   []string
	now     func() time.Time
}

func NewRun() *Run {
	return newRunAt(time.Now)
}

func newRunAt(now func() time.Time) *Run {
	return &Run{
		Date:    now(),
		records: make(map[string]*LedgerRecord),
		now:     now,
	}
}

// Begin creates the record for an invoice id if absent. Idempotent: calling
// it again for an id already started does not reset the record.
func (r *Run) Begin(invoiceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(invoiceID)
}

func (r *Run) ensure(invoiceID string) *LedgerRecord {
	if rec, ok := r.records[invoiceID]; ok {
		return rec
	}
	now := r.now()
	rec := &LedgerRecord{
		InvoiceID:     invoiceID,
		ReceivedAt:    now,
		StartedAt:     now,
		LastMutatedAt: now,
	}
	r.records[invoiceID] = rec
	r.order = append(r.order, invoiceID)
	return rec
}

// MarkReceived records when the originating document arrived, used only for
// report ordering.
func (r *Run) MarkReceived(invoiceID string, receivedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.ensure(invoiceID)
	if !receivedAt.IsZero() {
		rec.ReceivedAt = receivedAt
	}
	rec.touch(r.now())
}

func (r *Run) RecordOutcome(invoiceID string, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.ensure(invoiceID)
	rec.CargueID = outcome.CargueID
	if outcome.Success {
		rec.Status = StatusUploaded
	} else {
		rec.Status = StatusUploadFailed
	}
	rec.touch(r.now())
}

func (r *Run) RecordStatus(invoiceID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.ensure(invoiceID)
	rec.Status = status
	rec.touch(r.now())
}

func (r *Run) RecordError(invoiceID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.ensure(invoiceID)
	rec.Errors = append(rec.Errors, reason)
	rec.touch(r.now())
}

func (r *Run) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// OrderByReceivedDesc returns copies of the records newest-received first.
// Ties keep reverse insertion order. Reporting only; processing order is
// whatever the intake delivered.
func (r *Run) OrderByReceivedDesc() []LedgerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LedgerRecord, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.records[r.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out
}

// SnapshotAsRows projects every record into a report row at the given
// location (the business runs its control sheet on a fixed UTC-5 offset).
// Internal timestamps stay in their original zone.
func (r *Run) SnapshotAsRows(loc *time.Location) []ReportRow {
	records := r.OrderByReceivedDesc()
	rows := make([]ReportRow, 0, len(records))
	for _, rec := range records {
		at := rec.LastMutatedAt.In(loc)
		rows = append(rows, ReportRow{
			InvoiceID: rec.InvoiceID,
			CargueID:  rec.CargueID,
			Status:    rec.Status,
			Errors:    strings.Join(rec.Errors, ", "),
			Day:       at.Format("02"),
			Month:     at.Format("01"),
			Year:      at.Year(),
			Moment:    at.Format("15:04:05"),
		})
	}
	return rows
}

// Record returns a copy of the ledger record for an invoice id.
func (r *Run) Record(invoiceID string) (LedgerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[invoiceID]
	if !ok {
		return LedgerRecord{}, false
	}
	return *rec, true
}

// RunTracker swaps the active run atomically so the worker can keep
// accepting jobs while a finished batch is being reported. Jobs that span
// the whole pipeline take the run via Hold, which keeps rotation waiting
// until the job's outcome has landed on that run.
type RunTracker struct {
	mu      sync.RWMutex
	current *Run
}

func NewRunTracker() *RunTracker {
	return &RunTracker{current: NewRun()}
}

func (t *RunTracker) Current() *Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Hold returns the active run pinned against rotation. The caller must
// invoke release once its mutations on the run are complete; until then
// Rotate blocks, so no job outcome can land on an already-reported run.
func (t *RunTracker) Hold() (run *Run, release func()) {
	t.mu.RLock()
	return t.current, t.mu.RUnlock
}

// Rotate installs a fresh run and returns the finished one. Waits for every
// held run to be released first.
func (t *RunTracker) Rotate() *Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := t.current
	t.current = NewRun()
	return done
}
