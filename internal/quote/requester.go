// Package quote obtains signed coverage quotes from the pricing backend.
package quote

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/session"
)

// Backend creates policy drafts.
type Backend interface {
	CreatePolicyDraft(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error)
}

// Input is what the user asks to be quoted.
type Input struct {
	Product       model.Product
	TermDays      model.TermDays
	InsuredAmount string
	Params        map[string]interface{}
	// IdempotencyKey defaults to a fresh UUID. Reusing a key asks the
	// backend for the same draft.
	IdempotencyKey string
}

type slot struct {
	gen    uint64
	cancel context.CancelFunc
	draft  *model.PolicyDraft
}

// Requester holds at most one current draft per product. A newer request
// for a product cancels the pending one, and the older result is dropped.
type Requester struct {
	backend Backend
	chainID uint64
	logger  *zap.Logger
	newKey  func() string

	mu    sync.Mutex
	slots map[model.Product]*slot
}

func NewRequester(backend Backend, chainID uint64, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{
		backend: backend,
		chainID: chainID,
		logger:  logger,
		newKey:  uuid.NewString,
		slots:   make(map[model.Product]*slot),
	}
}

// Validate checks input without touching the network.
func Validate(in Input) (model.CoverageRequest, error) {
	if !in.Product.Valid() {
		return model.CoverageRequest{}, apperr.Validation("unknown product %q", in.Product)
	}
	if !in.TermDays.Valid() {
		return model.CoverageRequest{}, apperr.Validation("term must be 10, 20 or 30 days")
	}
	insured, err := amount.ParsePositive(in.InsuredAmount)
	if err != nil {
		return model.CoverageRequest{}, err
	}
	return model.CoverageRequest{
		Product:        in.Product,
		TermDays:       in.TermDays,
		InsuredAmount:  insured,
		Params:         in.Params,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
	}, nil
}

// Request validates in, gates on the session's network, and asks the
// backend for a draft. It returns apperr.ErrSuperseded when a newer request
// for the same product was issued meanwhile; that result is not stored.
func (r *Requester) Request(ctx context.Context, sess session.Session, in Input) (model.PolicyDraft, error) {
	req, err := Validate(in)
	if err != nil {
		return model.PolicyDraft{}, err
	}
	if err := sess.CheckNetwork(r.chainID); err != nil {
		return model.PolicyDraft{}, err
	}
	req.Wallet = sess.Wallet.Hex()
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.newKey()
	}

	callCtx, gen := r.begin(ctx, req.Product)
	r.logger.Info("quote requested",
		zap.String("product", string(req.Product)),
		zap.Int("term_days", int(req.TermDays)),
		zap.String("insured", req.InsuredAmount.String()),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	draft, err := r.backend.CreatePolicyDraft(callCtx, req)

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[req.Product]
	if s == nil || s.gen != gen {
		r.logger.Debug("discarding superseded quote", zap.String("product", string(req.Product)))
		return model.PolicyDraft{}, apperr.ErrSuperseded
	}
	s.cancel()
	s.cancel = func() {}
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Network("quote request failed", err)
		}
		return model.PolicyDraft{}, err
	}
	if strings.TrimSpace(draft.DraftID) == "" {
		return model.PolicyDraft{}, apperr.Network("backend returned a draft without id", nil)
	}

	s.draft = &draft
	r.logger.Info("quote received",
		zap.String("draft_id", draft.DraftID),
		zap.Float64("premium_usd", draft.PremiumUSD),
		zap.Float64("coverage_cap_usd", draft.CoverageCapUSD),
		zap.Uint64("deadline", draft.Deadline()),
	)
	return draft, nil
}

func (r *Requester) begin(ctx context.Context, product model.Product) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[product]
	if s == nil {
		s = &slot{cancel: func() {}}
		r.slots[product] = s
	}
	s.cancel()
	s.gen++
	callCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return callCtx, s.gen
}

// Current returns the product's latest accepted draft.
func (r *Requester) Current(product model.Product) (model.PolicyDraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[product]
	if s == nil || s.draft == nil {
		return model.PolicyDraft{}, false
	}
	return *s.draft, true
}

// Discard drops the product's draft and cancels any pending request.
func (r *Requester) Discard(product model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[product]
	if s == nil {
		return
	}
	s.cancel()
	s.cancel = func() {}
	s.gen++
	s.draft = nil
}
