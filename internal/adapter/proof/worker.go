package proof

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/infrastructure/metrics"

	"github.com/cenkalti/backoff/v5"
)

var errUnavailable = errors.New("ledger unavailable")

// VerificationStore persists the proof outcome. It must not touch balances or status.
type VerificationStore interface {
	UpdateVerification(ctx context.Context, advanceID string, status advance.VerificationStatus, pending bool, proofHash, txRef string) error
}

// Worker drains proof jobs one at a time, retrying each with capped exponential backoff.
type Worker struct {
	recorder advance.ProofRecorder
	store    VerificationStore
	jobs     chan advance.ProofRequest

	callTimeout time.Duration
	maxTries    uint
	initial     time.Duration
	maxInterval time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
}

var _ advance.ProofQueue = (*Worker)(nil)

type Option func(*Worker)

func WithCallTimeout(d time.Duration) Option { return func(w *Worker) { w.callTimeout = d } }
func WithLogger(l *slog.Logger) Option       { return func(w *Worker) { w.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(w *Worker) { w.metrics = m } }

// WithRetry bounds attempts per job and the backoff between them.
func WithRetry(maxTries uint, initial, maxInterval time.Duration) Option {
	return func(w *Worker) {
		w.maxTries = maxTries
		w.initial = initial
		w.maxInterval = maxInterval
	}
}

func NewWorker(recorder advance.ProofRecorder, store VerificationStore, queueSize int, opts ...Option) *Worker {
	w := &Worker{
		recorder:    recorder,
		store:       store,
		jobs:        make(chan advance.ProofRequest, queueSize),
		callTimeout: 5 * time.Second,
		maxTries:    5,
		initial:     500 * time.Millisecond,
		maxInterval: 30 * time.Second,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Enqueue never blocks; it reports false when the queue is full.
func (w *Worker) Enqueue(req advance.ProofRequest) bool {
	select {
	case w.jobs <- req:
		return true
	default:
		return false
	}
}

// Run processes jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-w.jobs:
			w.process(ctx, req)
		}
	}
}

func (w *Worker) process(ctx context.Context, req advance.ProofRequest) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.initial
	eb.MaxInterval = w.maxInterval

	res, err := backoff.Retry(ctx, func() (*advance.ProofResult, error) {
		cctx, cancel := context.WithTimeout(ctx, w.callTimeout)
		defer cancel()
		res, err := w.recorder.RecordDisbursement(cctx, req)
		if err != nil {
			return nil, err
		}
		if res.Status == advance.VerificationUnavailable {
			return nil, errUnavailable
		}
		return res, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(w.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.log.Warn("proof attempt failed", "advance_id", req.AdvanceID, "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		w.log.Error("proof gave up, left pending", "advance_id", req.AdvanceID, "error", err)
		res = &advance.ProofResult{Status: advance.VerificationUnavailable}
	}

	pending := res.Status != advance.VerificationConfirmed
	w.metrics.Proof(string(res.Status))

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.callTimeout)
	defer cancel()
	if err := w.store.UpdateVerification(sctx, req.AdvanceID, res.Status, pending, res.ProofHash, res.TxRef); err != nil {
		w.log.Error("store proof outcome", "advance_id", req.AdvanceID, "error", err)
		return
	}
	w.log.Info("proof recorded", "advance_id", req.AdvanceID, "status", string(res.Status), "tx_ref", res.TxRef)
}

// PendingLister returns advances whose proof is still outstanding.
type PendingLister interface {
	ListPendingVerification(ctx context.Context, limit int) ([]advance.Advance, error)
}

// Requeue re-enqueues pending proofs the ledger never acknowledged (no tx ref): jobs dropped on a
// full queue, lost on restart, or given up as UNAVAILABLE. It stops at the first full-queue refusal.
func (w *Worker) Requeue(ctx context.Context, lister PendingLister, limit int) (int, error) {
	list, err := lister.ListPendingVerification(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range list {
		if a.ProofTxRef != "" || a.DisbursedAt == nil {
			continue
		}
		if !w.Enqueue(advance.ProofRequest{
			AdvanceID:   a.AdvanceID,
			FarmerID:    a.FarmerID,
			Amount:      a.DisbursedAmount,
			Reference:   a.DisbursementReference,
			DisbursedAt: *a.DisbursedAt,
		}) {
			break
		}
		n++
	}
	if n > 0 {
		w.log.Info("proofs requeued", "count", n)
	}
	return n, nil
}

// RunRequeue calls Requeue every interval until ctx is done.
func (w *Worker) RunRequeue(ctx context.Context, lister PendingLister, interval time.Duration, limit int) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Requeue(ctx, lister, limit); err != nil {
				w.log.Error("requeue pending proofs", "error", err)
			}
		}
	}
}
