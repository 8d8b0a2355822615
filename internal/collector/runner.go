package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
)

// ErrNotAssociated is returned when an on-demand run targets a group the
// account is not linked to.
var ErrNotAssociated = errs.New(errs.CodeValidation, "account is not associated with group")

// ErrCollectionInProgress is returned when the pair is already being
// collected by another run.
var ErrCollectionInProgress = errs.New(errs.CodeTransient, "collection already in progress")

// Report summarizes a CollectAll pass.
type Report struct {
	Associations int
	Succeeded    int
	Failed       int
	// Skipped counts associations not attempted: their account failed
	// authentication, another run held the pair or the pass was cancelled.
	Skipped     int
	NewMessages int
}

// Runner invokes the engine for associations and maintains their
// collection watermark.
type Runner struct {
	db     database.Store
	engine *Engine
	cfg    config.CollectorConfig
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	running map[int64]struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the wall clock used for watermarks and the stale cutoff.
func WithClock(c clockwork.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// NewRunner creates a runner.
func NewRunner(db database.Store, engine *Engine, cfg config.CollectorConfig, log *slog.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	r := &Runner{
		db:      db,
		engine:  engine,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  log.With("component", "collection_runner"),
		running: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CollectAll runs an incremental collection for every active association.
// Accounts run in parallel up to MaxParallelAccounts; the associations of
// one account run one after another, so a pair is never collected twice at
// once. Failures are counted, not returned.
func (r *Runner) CollectAll(ctx context.Context) (Report, error) {
	assocs, err := r.db.ListActiveAssociations(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list active associations: %w", err)
	}

	var order []int64
	byAccount := make(map[int64][]*database.AssociationDetail)
	for _, a := range assocs {
		if _, seen := byAccount[a.AccountID]; !seen {
			order = append(order, a.AccountID)
		}
		byAccount[a.AccountID] = append(byAccount[a.AccountID], a)
	}

	report := Report{Associations: len(assocs)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(r.cfg.MaxParallelAccounts, 1))

	for _, accountID := range order {
		list := byAccount[accountID]
		g.Go(func() error {
			for i, a := range list {
				if ctx.Err() != nil {
					mu.Lock()
					report.Skipped += len(list) - i
					mu.Unlock()
					return nil
				}

				res, err := r.run(ctx, &a.Association, r.cfg.Limit, ModeIncremental)
				if errors.Is(err, ErrCollectionInProgress) {
					r.logger.InfoContext(ctx, "Group already being collected, skipping",
						"account_id", accountID, "group_id", a.GroupID, "group", a.GroupName)
					mu.Lock()
					report.Skipped++
					mu.Unlock()
					continue
				}

				mu.Lock()
				if err != nil {
					report.Failed++
				} else {
					report.Succeeded++
					report.NewMessages += res.Inserted
				}
				mu.Unlock()

				if errors.Is(err, ErrAccountNotAuthenticated) {
					r.logger.WarnContext(ctx, "Account not authenticated, skipping its groups",
						"account_id", accountID, "phone", a.PhoneNumber, "skipped", len(list)-i-1)
					mu.Lock()
					report.Skipped += len(list) - i - 1
					mu.Unlock()
					return nil
				}
				if err != nil {
					r.logger.ErrorContext(ctx, "Collection run failed",
						"account_id", accountID, "group_id", a.GroupID, "group", a.GroupName,
						"error", err, "code", errs.Code(err), "transient", errs.IsTransient(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.InfoContext(ctx, "Collection pass finished",
		"associations", report.Associations,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"new_messages", report.NewMessages,
	)
	return report, ctx.Err()
}

// CollectOne runs a single on-demand collection for an (account, group)
// pair. groupID is the stored group row id.
func (r *Runner) CollectOne(ctx context.Context, accountID, groupID int64, limit int, mode Mode) (Result, error) {
	assoc, err := r.db.GetAssociation(ctx, accountID, groupID)
	if err != nil {
		return Result{}, err
	}
	if assoc == nil {
		return Result{}, fmt.Errorf("%w: account %d, group %d", ErrNotAssociated, accountID, groupID)
	}
	return r.run(ctx, assoc, limit, mode)
}

// run bounds one engine run by the configured timeout and advances the
// watermark on success. Only one run per association executes at a time.
func (r *Runner) run(ctx context.Context, assoc *database.Association, limit int, mode Mode) (Result, error) {
	if !r.acquire(assoc.ID) {
		return Result{}, fmt.Errorf("%w: account %d, group %d", ErrCollectionInProgress, assoc.AccountID, assoc.GroupID)
	}
	defer r.release(assoc.ID)

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	res, err := r.engine.Collect(runCtx, assoc.AccountID, assoc.GroupID, limit, mode)
	if err != nil {
		return res, err
	}

	if err := r.db.TouchAssociation(ctx, assoc.ID, r.clock.Now()); err != nil {
		return res, fmt.Errorf("update collection watermark: %w", err)
	}
	return res, nil
}

func (r *Runner) acquire(assocID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[assocID]; busy {
		return false
	}
	r.running[assocID] = struct{}{}
	return true
}

func (r *Runner) release(assocID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, assocID)
}

// SweepStale deactivates associations not collected within StaleAfter.
func (r *Runner) SweepStale(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.cfg.StaleAfter)
	n, err := r.db.DeactivateStaleAssociations(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Deactivated stale associations", "count", n, "stale_after", r.cfg.StaleAfter)
	}
	return n, nil
}
