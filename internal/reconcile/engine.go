package reconcile

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"kantin-reconciler/internal/store"
)

// Config tunes one reconciliation run. Defaults reproduce the production
// free-tier policy.
type Config struct {
	Collections Collections

	// GraceDays is the protection window after contract expiry during which
	// deletion is withheld.
	GraceDays int

	// Free-tier quotas, per tenant.
	ProductLimit    int
	StaffLimit      int
	TenantUserLimit int

	// FreeTierTenantCap is how many tenants stay selected after a trial
	// downgrade.
	FreeTierTenantCap int

	// InvitationTTL is how long an invitation code stays redeemable.
	InvitationTTL time.Duration

	// QueryLimit caps quota count queries as a safety bound.
	QueryLimit int
}

func DefaultConfig() Config {
	return Config{
		Collections:       DefaultCollections(),
		GraceDays:         90,
		ProductLimit:      15,
		StaffLimit:        1,
		TenantUserLimit:   1,
		FreeTierTenantCap: 2,
		InvitationTTL:     5 * time.Hour,
		QueryLimit:        100,
	}
}

// Engine is the run coordinator. One Engine value handles one store pair;
// each Run owns its Summary, so there is no cross-run state.
type Engine struct {
	docs store.DocumentStore
	ids  store.IdentityStore
	sel  *Selector
	log  *zap.Logger
	cfg  Config
	now  func() time.Time
	rnd  *rand.Rand
}

type Option func(*Engine)

// WithClock pins the engine's notion of now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand injects the randomness source used for quota eviction, so tests
// can seed it deterministically.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Engine) { e.rnd = rnd }
}

func New(docs store.DocumentStore, ids store.IdentityStore, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		docs: docs,
		ids:  ids,
		sel:  NewSelector(docs, cfg.Collections, cfg.QueryLimit),
		log:  logger,
		cfg:  cfg,
		now:  time.Now,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes all reconciliation tasks in a fixed order and returns the
// accumulated summary. A failing task is recorded and skipped; only context
// cancellation aborts the remaining tasks, in which case the summary carries
// OutcomeFailure and the cancellation error is returned.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	sum := newSummary(e.now().UTC())
	e.log.Info("starting reconciliation run", zap.Time("start", sum.StartTime))

	tasks := []struct {
		name string
		fn   func(context.Context, *Summary) error
	}{
		{"contract_expiry", e.expireContracts},
		{"invitation_codes", e.expireInvitationCodes},
		{"trial_downgrade", e.downgradeTrials},
		{"product_limits", e.enforceProductLimits},
		{"staff_limits", e.enforceStaffLimits},
		{"tenant_user_limits", e.enforceTenantUserLimits},
	}

	var abortErr error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		if err := task.fn(ctx, sum); err != nil {
			if ctx.Err() != nil {
				abortErr = err
				break
			}
			// Task-level failure: the task is skipped for this run, the
			// remaining tasks still execute.
			e.log.Error("task failed", zap.String("task", task.name), zap.Error(err))
			sum.addError("task:"+task.name, err)
		}
	}

	sum.EndTime = e.now().UTC()
	switch {
	case abortErr != nil:
		sum.Outcome = OutcomeFailure
	case sum.Errors > 0:
		sum.Outcome = OutcomePartial
	default:
		sum.Outcome = OutcomeSuccess
	}

	e.log.Info("reconciliation run finished",
		zap.String("outcome", string(sum.Outcome)),
		zap.Int("checked", sum.Checked),
		zap.Int("deleted", sum.Deleted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
		zap.Duration("duration", sum.EndTime.Sub(sum.StartTime)),
	)
	return sum, abortErr
}
