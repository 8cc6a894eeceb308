package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quickdash/order-api/internal/cart"
	domain "github.com/quickdash/order-api/internal/entity"
	"github.com/quickdash/order-api/internal/logging"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotPayable         = errors.New("order is not payable")
	ErrAlreadyCompleted   = errors.New("payment already completed")
	ErrUnverifiedDistance = errors.New("delivery distance unverified; explicit confirmation required")
	// ErrGatewayConfig is fatal: the gateway credentials are absent or
	// rejected. Retrying cannot help.
	ErrGatewayConfig = errors.New("payment gateway not configured")
)

var (
	paymentCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_completions_total",
		Help: "Confirmed payment completions by signal source",
	}, []string{"source"})

	paymentDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_duplicate_completions_total",
		Help: "Completion signals discarded because another source won",
	})
)

// Attempt states, reported back to the paying client.
type AttemptState int32

const (
	StateIdle AttemptState = iota
	StateChargeRequested
	StateRedirectPending
	StateCompleted
	StateFailed
)

func (s AttemptState) String() string {
	switch s {
	case StateChargeRequested:
		return "charge_requested"
	case StateRedirectPending:
		return "redirect_pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

type attempt struct {
	orderID string
	state   atomic.Int32

	mu         sync.Mutex
	reference  string
	cancelPoll context.CancelFunc
}

func (a *attempt) setReference(ref string) {
	a.mu.Lock()
	a.reference = ref
	a.mu.Unlock()
}

func (a *attempt) getReference() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reference
}

// swapCancel installs the poll cancel func, stopping any earlier poll for
// the same attempt first.
func (a *attempt) swapCancel(cancel context.CancelFunc) {
	a.mu.Lock()
	prev := a.cancelPoll
	a.cancelPoll = cancel
	a.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (a *attempt) stopPoll() {
	a.mu.Lock()
	cancel := a.cancelPoll
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

type PaymentConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

type InitiateChargeInput struct {
	OrderID    string
	CustomerID string
	Email      string
	// ConfirmUnverifiedDistance must be set when the order was priced
	// against an unverifiable distance.
	ConfirmUnverifiedDistance bool
}

type ChargeOutcome struct {
	Completed   bool
	Reference   string
	RedirectURL string
}

// Payments drives a charge through the three completion paths (immediate,
// redirect callback, background poll) to a single idempotent completion.
// The authoritative first-writer-wins guard is the database row; the Redis
// lock and the in-memory attempt state are fast-path filters in front of it.
type Payments struct {
	repo    OrderRepo
	gw      PaymentGateway
	idem    IdempotencyStore
	carts   cart.Store
	cache   OrderCache
	stores  StoreDirectory
	members MembershipRepo
	cfg     PaymentConfig

	mu       sync.Mutex
	attempts map[string]*attempt
}

func NewPayments(repo OrderRepo, gw PaymentGateway, idem IdempotencyStore, carts cart.Store,
	cache OrderCache, stores StoreDirectory, members MembershipRepo, cfg PaymentConfig) *Payments {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 100
	}
	return &Payments{
		repo: repo, gw: gw, idem: idem, carts: carts, cache: cache,
		stores: stores, members: members, cfg: cfg,
		attempts: make(map[string]*attempt),
	}
}

// InitiateCharge re-evaluates the eligibility gate, then asks the gateway to
// charge the order total. The gate runs on every attempt: membership can be
// revoked between attempts and a cached verdict must not let money move.
func (p *Payments) InitiateCharge(ctx context.Context, in InitiateChargeInput) (*ChargeOutcome, error) {
	rec, err := p.repo.GetByID(ctx, in.OrderID)
	if err != nil || rec == nil {
		return nil, ErrOrderNotFound
	}
	if rec.PaymentStatus == string(domain.PaymentConfirmed) {
		return &ChargeOutcome{Completed: true, Reference: rec.PaymentReference}, nil
	}
	if rec.TotalCents <= 0 {
		return nil, fmt.Errorf("%w: zero total", ErrNotPayable)
	}
	if rec.DeliveryAddress == "" {
		return nil, ErrNoAddress
	}
	if rec.Lat == nil && !in.ConfirmUnverifiedDistance {
		return nil, ErrUnverifiedDistance
	}

	store, err := p.stores.Get(ctx, rec.StoreID)
	if err != nil {
		return nil, fmt.Errorf("lookup store %s: %w", rec.StoreID, err)
	}
	if store != nil && store.RequiresMembership {
		ok, err := p.members.Exists(ctx, in.CustomerID, rec.StoreID)
		if err != nil {
			return nil, fmt.Errorf("membership check: %w", err)
		}
		if !ok {
			return nil, ErrMembershipRequired
		}
	}

	att := p.attemptFor(in.OrderID)
	att.state.Store(int32(StateChargeRequested))

	res, err := p.gw.Initialize(ctx, ChargeRequest{
		Email:       in.Email,
		AmountMinor: rec.TotalCents,
		OrderID:     rec.ID,
		MetadataFields: map[string]string{
			"customer_id": rec.CustomerID,
			"store_id":    rec.StoreID,
		},
	})
	if err != nil {
		att.state.Store(int32(StateFailed))
		return nil, err
	}

	att.setReference(res.Reference)

	if res.Status == "success" {
		if _, err := p.Complete(ctx, res.Reference, rec.ID, "sync"); err != nil {
			return nil, err
		}
		return &ChargeOutcome{Completed: true, Reference: res.Reference}, nil
	}

	// Redirect path. The reference write is best-effort: its failure
	// degrades later reconciliation and refund lookups but must not block
	// the payment flow.
	if err := p.repo.SetPaymentReference(ctx, rec.ID, res.Reference); err != nil {
		logging.FromCtx(ctx).Warn("payment reference save failed",
			"order_id", rec.ID, "reference", res.Reference, "error", err.Error())
	}

	att.state.Store(int32(StateRedirectPending))
	p.startPoll(att, res.Reference)

	return &ChargeOutcome{Reference: res.Reference, RedirectURL: res.AuthorizationURL}, nil
}

// startPoll launches the background verify loop. It is detached from the
// request context: the redirect surface outlives the initiating request.
func (p *Payments) startPoll(att *attempt, reference string) {
	ctx, cancel := context.WithCancel(context.Background())
	att.swapCancel(cancel)

	go func() {
		l := logging.New("payment-poll").With("order_id", att.orderID, "reference", reference)
		tick := time.NewTicker(p.cfg.PollInterval)
		defer tick.Stop()

		for i := 0; i < p.cfg.PollMaxAttempts; i++ {
			select {
			case <-ctx.Done():
				// Surface closed. Not a failure: the user may retry.
				return
			case <-tick.C:
			}

			res, err := p.gw.Verify(ctx, reference)
			if err != nil {
				// Transient verify errors retry silently.
				l.Debug("verify tick failed", "error", err.Error())
				continue
			}
			switch res.Status {
			case "success":
				// A failed completion retries on the next tick; the charge
				// already succeeded, only our side of the flip is pending.
				if _, err := p.Complete(ctx, reference, att.orderID, "poll"); err != nil {
					l.Error("poll completion failed; will retry", "error", err.Error())
					continue
				}
				return
			case "failed":
				att.state.Store(int32(StateFailed))
				l.Info("gateway reported charge failed")
				return
			}
		}
		l.Warn("poll budget exhausted; waiting on callback")
	}()
}

// Complete is the single idempotent success handler both signal sources call.
// The first caller flips the row (payment unconfirmed->confirmed, status
// pending->new), clears the cart, and updates the status cache; any later
// caller is a no-op.
func (p *Payments) Complete(ctx context.Context, reference, orderID, source string) (bool, error) {
	if att := p.lookup(orderID); att != nil && AttemptState(att.state.Load()) == StateCompleted {
		paymentDuplicates.Inc()
		return false, nil
	}

	// Cross-process fast filter. A Redis error falls through to the row
	// guard rather than blocking completion.
	locked := false
	if ok, err := p.idem.TryLock(ctx, "payment:complete", orderID); err == nil {
		if !ok {
			paymentDuplicates.Inc()
			return false, nil
		}
		locked = true
	}

	flipped, err := p.repo.ConfirmPaymentIf(ctx, orderID, reference)
	if err != nil {
		// The row guard is the correctness gate, the lock is only a filter.
		// Give the lock back so the next signal (webhook redelivery, poll
		// tick) can retry the flip instead of being discarded as a duplicate.
		if locked {
			if uerr := p.idem.Unlock(ctx, "payment:complete", orderID); uerr != nil {
				logging.FromCtx(ctx).Warn("completion lock release failed",
					"order_id", orderID, "error", uerr.Error())
			}
		}
		return false, fmt.Errorf("confirm payment: %w", err)
	}
	if !flipped {
		paymentDuplicates.Inc()
		return false, nil
	}

	l := logging.FromCtx(ctx).With("order_id", orderID, "reference", reference, "source", source)
	paymentCompletions.WithLabelValues(source).Inc()

	if att := p.lookup(orderID); att != nil {
		att.state.Store(int32(StateCompleted))
		att.stopPoll()
	}

	// Post-completion steps are best-effort: the payment already counts.
	if rec, err := p.repo.GetByID(ctx, orderID); err == nil && rec != nil {
		if err := p.carts.Delete(ctx, rec.CustomerID); err != nil {
			l.Warn("cart clear failed", "error", err.Error())
		}
	}
	if err := p.cache.SetStatus(ctx, orderID, string(domain.StatusNew)); err != nil {
		l.Warn("status cache update failed", "error", err.Error())
	}

	l.Info("payment completed")
	return true, nil
}

// ClosePollSurface stops the background poll for the order without marking
// the attempt failed. Called when the user dismisses the redirect surface.
func (p *Payments) ClosePollSurface(orderID string) {
	if att := p.lookup(orderID); att != nil {
		att.stopPoll()
	}
}

// Status reports the in-flight attempt state for the client's own polling.
func (p *Payments) Status(orderID string) (AttemptState, string) {
	att := p.lookup(orderID)
	if att == nil {
		return StateIdle, ""
	}
	return AttemptState(att.state.Load()), att.getReference()
}

func (p *Payments) attemptFor(orderID string) *attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if att, ok := p.attempts[orderID]; ok {
		return att
	}
	att := &attempt{orderID: orderID}
	p.attempts[orderID] = att
	return att
}

func (p *Payments) lookup(orderID string) *attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[orderID]
}
