package quote

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain/chaintest"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/session"
)

type backendFunc func(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error)

func (f backendFunc) CreatePolicyDraft(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error) {
	return f(ctx, req)
}

func connected() session.Session {
	return session.New(8453, chaintest.NewWallet(chaintest.Addr("owner")))
}

func validInput() Input {
	return Input{Product: model.ProductDepegLP, TermDays: 30, InsuredAmount: "500"}
}

func TestRequestRejectsBeforeNetwork(t *testing.T) {
	var calls int32
	backend := backendFunc(func(context.Context, model.CoverageRequest) (model.PolicyDraft, error) {
		atomic.AddInt32(&calls, 1)
		return model.PolicyDraft{DraftID: "d"}, nil
	})
	r := NewRequester(backend, 8453, nil)

	cases := []struct {
		name string
		sess session.Session
		in   Input
		kind apperr.Kind
	}{
		{"zero", connected(), Input{Product: model.ProductDepegLP, TermDays: 30, InsuredAmount: "0"}, apperr.KindValidation},
		{"negative", connected(), Input{Product: model.ProductDepegLP, TermDays: 30, InsuredAmount: "-5"}, apperr.KindValidation},
		{"non-numeric", connected(), Input{Product: model.ProductDepegLP, TermDays: 30, InsuredAmount: "abc"}, apperr.KindValidation},
		{"empty", connected(), Input{Product: model.ProductDepegLP, TermDays: 30, InsuredAmount: " "}, apperr.KindValidation},
		{"bad term", connected(), Input{Product: model.ProductDepegLP, TermDays: 15, InsuredAmount: "5"}, apperr.KindValidation},
		{"bad product", connected(), Input{Product: "OTHER", TermDays: 10, InsuredAmount: "5"}, apperr.KindValidation},
		{"disconnected", session.Session{ChainID: 8453}, validInput(), apperr.KindValidation},
		{"wrong network", session.New(1, chaintest.NewWallet(chaintest.Addr("owner"))), validInput(), apperr.KindChain},
	}
	for _, tc := range cases {
		_, err := r.Request(context.Background(), tc.sess, tc.in)
		assert.True(t, apperr.IsKind(err, tc.kind), "%s: got %v", tc.name, err)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	_, ok := r.Current(model.ProductDepegLP)
	assert.False(t, ok)
}

func TestRequestFillsWalletAndKey(t *testing.T) {
	var got model.CoverageRequest
	backend := backendFunc(func(_ context.Context, req model.CoverageRequest) (model.PolicyDraft, error) {
		got = req
		return model.PolicyDraft{DraftID: "d1", PremiumUSD: 4.2, CoverageCapUSD: 450}, nil
	})
	r := NewRequester(backend, 8453, nil)
	r.newKey = func() string { return "generated" }
	sess := connected()

	draft, err := r.Request(context.Background(), sess, validInput())
	require.NoError(t, err)
	assert.Equal(t, "d1", draft.DraftID)
	assert.Equal(t, sess.Wallet.Hex(), got.Wallet)
	assert.Equal(t, "generated", got.IdempotencyKey)
	assert.Equal(t, "500", got.InsuredAmount.String())

	current, ok := r.Current(model.ProductDepegLP)
	require.True(t, ok)
	assert.Equal(t, "d1", current.DraftID)

	r.Discard(model.ProductDepegLP)
	_, ok = r.Current(model.ProductDepegLP)
	assert.False(t, ok)
}

func TestSupersededResultIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	backend := backendFunc(func(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error) {
		if req.IdempotencyKey == "first" {
			close(firstStarted)
			<-releaseFirst
			return model.PolicyDraft{DraftID: "stale"}, nil
		}
		return model.PolicyDraft{DraftID: "fresh"}, nil
	})
	r := NewRequester(backend, 8453, nil)
	sess := connected()

	firstErr := make(chan error, 1)
	go func() {
		in := validInput()
		in.IdempotencyKey = "first"
		_, err := r.Request(context.Background(), sess, in)
		firstErr <- err
	}()
	<-firstStarted

	in := validInput()
	in.IdempotencyKey = "second"
	draft, err := r.Request(context.Background(), sess, in)
	require.NoError(t, err)
	assert.Equal(t, "fresh", draft.DraftID)

	close(releaseFirst)
	assert.True(t, errors.Is(<-firstErr, apperr.ErrSuperseded))

	current, ok := r.Current(model.ProductDepegLP)
	require.True(t, ok)
	assert.Equal(t, "fresh", current.DraftID)
}

func TestSupersedingCancelsPendingRequest(t *testing.T) {
	started := make(chan struct{})
	backend := backendFunc(func(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error) {
		if req.IdempotencyKey == "slow" {
			close(started)
			<-ctx.Done()
			return model.PolicyDraft{}, ctx.Err()
		}
		return model.PolicyDraft{DraftID: "d2"}, nil
	})
	r := NewRequester(backend, 8453, nil)
	sess := connected()

	slowErr := make(chan error, 1)
	go func() {
		in := validInput()
		in.IdempotencyKey = "slow"
		_, err := r.Request(context.Background(), sess, in)
		slowErr <- err
	}()
	<-started

	_, err := r.Request(context.Background(), sess, validInput())
	require.NoError(t, err)
	assert.True(t, errors.Is(<-slowErr, apperr.ErrSuperseded))
}

func TestBackendFailureIsNetworkError(t *testing.T) {
	backend := backendFunc(func(context.Context, model.CoverageRequest) (model.PolicyDraft, error) {
		return model.PolicyDraft{}, errors.New("connection refused")
	})
	r := NewRequester(backend, 8453, nil)

	_, err := r.Request(context.Background(), connected(), validInput())
	assert.True(t, apperr.IsKind(err, apperr.KindNetwork))
}
