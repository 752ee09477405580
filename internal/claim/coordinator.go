// Package claim drives a claim from preview through validator signature to
// on-chain payout execution.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/session"
)

// State is the position of a claim attempt in its lifecycle.
type State string

const (
	StateIdle                   State = "idle"
	StatePreviewRequested       State = "preview_requested"
	StatePreviewed              State = "previewed"
	StateAuthorizationRequested State = "authorization_requested"
	StateAuthorized             State = "authorized"
	StateSubmitting             State = "submitting"
	StateConfirmed              State = "confirmed"
	StateFailed                 State = "failed"
)

// Backend is the validator surface used by claims.
type Backend interface {
	ListPolicies(ctx context.Context, wallet string) ([]model.PolicyRecord, error)
	PreviewClaim(ctx context.Context, policyID string) (model.ClaimPreview, error)
	SignClaim(ctx context.Context, policyID string) (model.ClaimAuthorization, error)
	ListClaims(ctx context.Context, wallet string) ([]model.ClaimRecord, error)
}

// Submitter sends the executeClaim transaction and waits for it.
type Submitter interface {
	ExecuteClaim(ctx context.Context, sess session.Session, policyID string, args chain.ExecuteClaimArgs) (common.Hash, error)
}

// Attempt is a snapshot of one claim attempt.
type Attempt struct {
	PolicyID      string
	State         State
	Preview       *model.ClaimPreview
	Authorization *model.ClaimAuthorization
	TxHash        common.Hash
	Claims        []model.ClaimRecord
	Err           error
	// Message is set whenever State is StateFailed.
	Message string
}

type attempt struct {
	Attempt
	gen    uint64
	cancel context.CancelFunc
}

// Coordinator tracks at most one attempt per policy. A new preview cancels
// every attempt that is not already submitting.
type Coordinator struct {
	backend   Backend
	submitter Submitter
	chainID   uint64
	clock     clock.Clock
	logger    *zap.Logger

	pollAttempts int
	pollInterval time.Duration

	mu       sync.Mutex
	gen      uint64
	attempts map[string]*attempt
}

// Options carries the optional collaborators of a Coordinator.
type Options struct {
	Clock        clock.Clock
	Logger       *zap.Logger
	PollAttempts int
	PollInterval time.Duration
}

func NewCoordinator(backend Backend, submitter Submitter, chainID uint64, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 5
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	return &Coordinator{
		backend:      backend,
		submitter:    submitter,
		chainID:      chainID,
		clock:        clock.OrReal(opts.Clock),
		logger:       logger,
		pollAttempts: opts.PollAttempts,
		pollInterval: opts.PollInterval,
		attempts:     make(map[string]*attempt),
	}
}

// Status returns the attempt for policyID.
func (c *Coordinator) Status(policyID string) (Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.attempts[policyID]
	if !ok {
		return Attempt{PolicyID: policyID, State: StateIdle}, false
	}
	return a.snapshot(), true
}

// Cancel abandons the attempt for policyID unless it is submitting.
func (c *Coordinator) Cancel(policyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.attempts[policyID]; ok && a.State != StateSubmitting {
		a.cancel()
		delete(c.attempts, policyID)
	}
}

// ActivePolicies lists the wallet's policies that can be claimed against.
func (c *Coordinator) ActivePolicies(ctx context.Context, sess session.Session) ([]model.PolicyRecord, error) {
	if err := sess.CheckNetwork(c.chainID); err != nil {
		return nil, err
	}
	policies, err := c.backend.ListPolicies(ctx, sess.Wallet.Hex())
	if err != nil {
		return nil, err
	}
	out := make([]model.PolicyRecord, 0, len(policies))
	for _, p := range policies {
		if p.Status == model.PolicyActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// PreviewByID looks policyID up among the wallet's policies and previews it.
func (c *Coordinator) PreviewByID(ctx context.Context, sess session.Session, policyID string) (Attempt, error) {
	if err := sess.CheckNetwork(c.chainID); err != nil {
		return Attempt{}, err
	}
	policies, err := c.backend.ListPolicies(ctx, sess.Wallet.Hex())
	if err != nil {
		return Attempt{}, err
	}
	for _, p := range policies {
		if p.PolicyID == policyID {
			return c.Preview(ctx, sess, p)
		}
	}
	return Attempt{}, apperr.Validation("policy %s not found for this wallet", policyID)
}

// Preview starts a new attempt for policy and fetches the payout estimate.
func (c *Coordinator) Preview(ctx context.Context, sess session.Session, policy model.PolicyRecord) (Attempt, error) {
	if err := sess.CheckNetwork(c.chainID); err != nil {
		return Attempt{}, err
	}
	if policy.Status != model.PolicyActive {
		return Attempt{}, apperr.Validation("policy %s is not active (status %s)", policy.PolicyID, policy.Status)
	}

	c.mu.Lock()
	if a, ok := c.attempts[policy.PolicyID]; ok && a.State == StateSubmitting {
		c.mu.Unlock()
		return Attempt{}, apperr.Validation("a claim for policy %s is already being submitted", policy.PolicyID)
	}
	for id, a := range c.attempts {
		if a.State == StateSubmitting {
			continue
		}
		a.cancel()
		delete(c.attempts, id)
	}
	c.gen++
	callCtx, cancel := context.WithCancel(ctx)
	a := &attempt{
		Attempt: Attempt{PolicyID: policy.PolicyID, State: StatePreviewRequested},
		gen:     c.gen,
		cancel:  cancel,
	}
	c.attempts[policy.PolicyID] = a
	gen := a.gen
	c.mu.Unlock()

	c.logger.Info("claim preview requested", zap.String("policy_id", policy.PolicyID))
	preview, err := c.backend.PreviewClaim(callCtx, policy.PolicyID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(a, gen) {
		return Attempt{}, apperr.ErrSuperseded
	}
	if err != nil {
		return c.fail(a, err)
	}
	a.Preview = &preview
	a.State = StatePreviewed
	c.logger.Info("claim previewed",
		zap.String("policy_id", policy.PolicyID),
		zap.Float64("payout_estimate", preview.PayoutEstimate),
		zap.Uint64("window_start", preview.S),
		zap.Uint64("window_end", preview.E),
	)
	return a.snapshot(), nil
}

// Authorize asks the validator to sign the previewed claim.
func (c *Coordinator) Authorize(ctx context.Context, policyID string) (Attempt, error) {
	c.mu.Lock()
	a, ok := c.attempts[policyID]
	if !ok || a.State != StatePreviewed {
		c.mu.Unlock()
		return Attempt{}, apperr.Validation("preview policy %s before requesting a signature", policyID)
	}
	a.State = StateAuthorizationRequested
	gen := a.gen
	callCtx, cancel := context.WithCancel(ctx)
	a.cancel = chainCancel(a.cancel, cancel)
	c.mu.Unlock()

	c.logger.Info("claim signature requested", zap.String("policy_id", policyID))
	auth, err := c.backend.SignClaim(callCtx, policyID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(a, gen) {
		return Attempt{}, apperr.ErrSuperseded
	}
	if err != nil {
		return c.fail(a, err)
	}
	if auth.Signature == "" {
		return c.fail(a, apperr.Network("validator returned an unsigned claim", nil))
	}
	a.Authorization = &auth
	a.State = StateAuthorized
	c.logger.Info("claim authorized",
		zap.String("policy_id", policyID),
		zap.Float64("payout", auth.Payout),
		zap.Int64("expires_at", auth.ExpiresAt),
	)
	return a.snapshot(), nil
}

// Submit executes the authorized claim on-chain. An expired authorization
// fails without any network call.
func (c *Coordinator) Submit(ctx context.Context, sess session.Session, policyID string) (Attempt, error) {
	c.mu.Lock()
	a, ok := c.attempts[policyID]
	if !ok || a.State != StateAuthorized || a.Authorization == nil {
		c.mu.Unlock()
		return Attempt{}, apperr.Validation("policy %s has no claim authorization to submit", policyID)
	}
	auth := *a.Authorization
	if auth.Expired(c.clock.Now()) {
		defer c.mu.Unlock()
		return c.fail(a, apperr.Stale("stale authorization: expired at %s; request a new signature",
			time.Unix(auth.ExpiresAt, 0).UTC().Format(time.RFC3339)))
	}
	if err := sess.RequireSigner(c.chainID); err != nil {
		defer c.mu.Unlock()
		return c.fail(a, err)
	}
	args, err := ExecuteArgs(auth, policyID)
	if err != nil {
		defer c.mu.Unlock()
		return c.fail(a, err)
	}
	a.State = StateSubmitting
	c.mu.Unlock()

	c.logger.Info("claim submitting", zap.String("policy_id", policyID), zap.String("payout", args.Payout.String()))
	hash, err := c.submitter.ExecuteClaim(ctx, sess, policyID, args)

	c.mu.Lock()
	if err != nil {
		a.TxHash = hash
		defer c.mu.Unlock()
		return c.fail(a, err)
	}
	a.TxHash = hash
	a.State = StateConfirmed
	c.mu.Unlock()

	c.logger.Info("claim confirmed", zap.String("policy_id", policyID), zap.String("tx", hash.Hex()))
	claims, err := c.pollClaims(ctx, sess, policyID, hash)
	if err != nil {
		c.logger.Warn("claim history refresh failed", zap.String("policy_id", policyID), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	a.Claims = claims
	return a.snapshot(), nil
}

// Run drives preview, authorization and submission for policyID.
func (c *Coordinator) Run(ctx context.Context, sess session.Session, policyID string) (Attempt, error) {
	if _, err := c.PreviewByID(ctx, sess, policyID); err != nil {
		return c.statusOr(policyID), err
	}
	if _, err := c.Authorize(ctx, policyID); err != nil {
		return c.statusOr(policyID), err
	}
	return c.Submit(ctx, sess, policyID)
}

func (c *Coordinator) statusOr(policyID string) Attempt {
	a, _ := c.Status(policyID)
	return a
}

// pollClaims refreshes the wallet's claim history until the backend has
// observed hash or the attempts run out. The last fetched list is returned.
func (c *Coordinator) pollClaims(ctx context.Context, sess session.Session, policyID string, hash common.Hash) ([]model.ClaimRecord, error) {
	var claims []model.ClaimRecord
	errPending := errors.New("claim not yet observed")
	operation := func() error {
		list, err := c.backend.ListClaims(ctx, sess.Wallet.Hex())
		if err != nil {
			return err
		}
		claims = list
		if observed(list, policyID, hash) {
			return nil
		}
		return errPending
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), uint64(c.pollAttempts-1))
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if errors.Is(err, errPending) {
		return claims, nil
	}
	return claims, err
}

func observed(list []model.ClaimRecord, policyID string, hash common.Hash) bool {
	for _, rec := range list {
		if rec.PolicyID != policyID {
			continue
		}
		if rec.Status == model.ClaimExecuted || (rec.TxHash != "" && common.HexToHash(rec.TxHash) == hash) {
			return true
		}
	}
	return false
}

// current reports whether a is still the live attempt of generation gen.
// Callers hold c.mu.
func (c *Coordinator) current(a *attempt, gen uint64) bool {
	live, ok := c.attempts[a.PolicyID]
	return ok && live == a && a.gen == gen
}

// fail moves a to StateFailed. Callers hold c.mu.
func (c *Coordinator) fail(a *attempt, err error) (Attempt, error) {
	a.State = StateFailed
	a.Err = err
	a.Message = apperr.Message(err)
	if a.Message == "" {
		a.Message = fmt.Sprintf("claim for policy %s failed", a.PolicyID)
	}
	c.logger.Warn("claim failed", zap.String("policy_id", a.PolicyID), zap.String("message", a.Message))
	return a.snapshot(), err
}

func (a *attempt) snapshot() Attempt {
	out := a.Attempt
	if out.Claims != nil {
		out.Claims = append([]model.ClaimRecord(nil), out.Claims...)
	}
	return out
}

func chainCancel(first, second context.CancelFunc) context.CancelFunc {
	return func() {
		first()
		second()
	}
}
