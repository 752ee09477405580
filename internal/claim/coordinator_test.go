package claim

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/chain"
	"liquidityGuard/internal/chain/chaintest"
	"liquidityGuard/internal/clock"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/session"
)

const testChainID = 8453

var now = time.Unix(1_700_000_000, 0)

type fakeBackend struct {
	mu       sync.Mutex
	policies []model.PolicyRecord
	auth     model.ClaimAuthorization
	claims   []model.ClaimRecord

	previewErr error
	// previewGate, when set, blocks PreviewClaim for the named policy.
	previewGate map[string]chan struct{}

	calls []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListPolicies(_ context.Context, wallet string) ([]model.PolicyRecord, error) {
	f.record("policies")
	return f.policies, nil
}

func (f *fakeBackend) PreviewClaim(ctx context.Context, policyID string) (model.ClaimPreview, error) {
	f.record("preview:" + policyID)
	if gate, ok := f.previewGate[policyID]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.ClaimPreview{}, ctx.Err()
		}
	}
	if f.previewErr != nil {
		return model.ClaimPreview{}, f.previewErr
	}
	return model.ClaimPreview{PolicyID: policyID, S: 10, E: 20, PayoutEstimate: 12.5}, nil
}

func (f *fakeBackend) SignClaim(_ context.Context, policyID string) (model.ClaimAuthorization, error) {
	f.record("sign:" + policyID)
	return f.auth, nil
}

func (f *fakeBackend) ListClaims(_ context.Context, wallet string) ([]model.ClaimRecord, error) {
	f.record("claims")
	return f.claims, nil
}

type fakeSubmitter struct {
	mu    sync.Mutex
	args  []chain.ExecuteClaimArgs
	err   error
	hash  common.Hash
	gate  chan struct{}
	entry chan struct{}
}

func (s *fakeSubmitter) ExecuteClaim(ctx context.Context, _ session.Session, _ string, args chain.ExecuteClaimArgs) (common.Hash, error) {
	s.mu.Lock()
	s.args = append(s.args, args)
	s.mu.Unlock()
	if s.entry != nil {
		close(s.entry)
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.hash, s.err
}

func (s *fakeSubmitter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.args)
}

func activePolicy(id string) model.PolicyRecord {
	return model.PolicyRecord{PolicyID: id, Status: model.PolicyActive, Product: model.ProductDepegLP}
}

func signedAuth(expiresAt int64) model.ClaimAuthorization {
	var payload model.ClaimPayload
	_ = json.Unmarshal([]byte(`{"policyId":"7","riskId":"0x01","S":"10","E":20,"payout":"5000000","nonce":"3"}`), &payload)
	return model.ClaimAuthorization{
		PolicyID:  "7",
		Payload:   payload,
		Signature: "0xdeadbeef",
		Payout:    5,
		ExpiresAt: expiresAt,
	}
}

func newCoordinator(backend Backend, submitter Submitter) *Coordinator {
	return NewCoordinator(backend, submitter, testChainID, Options{
		Clock:        clock.Fixed{At: now},
		PollAttempts: 3,
		PollInterval: time.Millisecond,
	})
}

func signerSession() session.Session {
	return session.New(testChainID, chaintest.NewWallet(chaintest.Addr("claimant")))
}

func TestRunConfirmsAndRefreshesClaims(t *testing.T) {
	hash := common.HexToHash("0xfeed")
	backend := &fakeBackend{
		policies: []model.PolicyRecord{activePolicy("7")},
		auth:     signedAuth(now.Unix() + 600),
		claims:   []model.ClaimRecord{{ClaimID: "c1", PolicyID: "7", Status: model.ClaimExecuted, TxHash: hash.Hex()}},
	}
	submitter := &fakeSubmitter{hash: hash}
	c := newCoordinator(backend, submitter)

	got, err := c.Run(context.Background(), signerSession(), "7")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, got.State)
	assert.Equal(t, hash, got.TxHash)
	require.Len(t, got.Claims, 1)
	assert.Equal(t, []string{"policies", "preview:7", "sign:7", "claims"}, backend.Calls())

	require.Equal(t, 1, submitter.Count())
	args := submitter.args[0]
	assert.Equal(t, int64(7), args.PolicyID.Int64())
	assert.Equal(t, int64(5_000_000), args.Payout.Int64())
	assert.Equal(t, int64(now.Unix()+600), args.Deadline.Int64())
}

func TestSubmitRejectsStaleAuthorization(t *testing.T) {
	backend := &fakeBackend{
		policies: []model.PolicyRecord{activePolicy("7")},
		auth:     signedAuth(now.Unix() - 1),
	}
	submitter := &fakeSubmitter{}
	c := newCoordinator(backend, submitter)
	sess := signerSession()

	_, err := c.PreviewByID(context.Background(), sess, "7")
	require.NoError(t, err)
	_, err = c.Authorize(context.Background(), "7")
	require.NoError(t, err)
	before := len(backend.Calls())

	got, err := c.Submit(context.Background(), sess, "7")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStaleAuthorization))
	assert.Equal(t, StateFailed, got.State)
	assert.Contains(t, got.Message, "stale authorization")
	assert.Equal(t, 0, submitter.Count())
	assert.Len(t, backend.Calls(), before)
}

func TestPreviewRejectsInactivePolicy(t *testing.T) {
	c := newCoordinator(&fakeBackend{}, &fakeSubmitter{})
	policy := activePolicy("7")
	policy.Status = model.PolicyExpired

	_, err := c.Preview(context.Background(), signerSession(), policy)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, ok := c.Status("7")
	assert.False(t, ok)
}

func TestPreviewByIDUnknownPolicy(t *testing.T) {
	c := newCoordinator(&fakeBackend{policies: []model.PolicyRecord{activePolicy("7")}}, &fakeSubmitter{})
	_, err := c.PreviewByID(context.Background(), signerSession(), "9")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestNewPreviewSupersedesOlder(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{previewGate: map[string]chan struct{}{"1": gate}}
	c := newCoordinator(backend, &fakeSubmitter{})
	sess := signerSession()

	errc := make(chan error, 1)
	go func() {
		_, err := c.Preview(context.Background(), sess, activePolicy("1"))
		errc <- err
	}()
	require.Eventually(t, func() bool {
		a, ok := c.Status("1")
		return ok && a.State == StatePreviewRequested
	}, time.Second, time.Millisecond)

	got, err := c.Preview(context.Background(), sess, activePolicy("2"))
	require.NoError(t, err)
	assert.Equal(t, StatePreviewed, got.State)

	assert.ErrorIs(t, <-errc, apperr.ErrSuperseded)
	_, ok := c.Status("1")
	assert.False(t, ok)
	a, ok := c.Status("2")
	require.True(t, ok)
	assert.Equal(t, 12.5, a.Preview.PayoutEstimate)
}

func TestPreviewBlockedWhileSubmitting(t *testing.T) {
	backend := &fakeBackend{
		policies: []model.PolicyRecord{activePolicy("7")},
		auth:     signedAuth(now.Unix() + 600),
	}
	submitter := &fakeSubmitter{gate: make(chan struct{}), entry: make(chan struct{})}
	c := newCoordinator(backend, submitter)
	sess := signerSession()

	_, err := c.PreviewByID(context.Background(), sess, "7")
	require.NoError(t, err)
	_, err = c.Authorize(context.Background(), "7")
	require.NoError(t, err)

	done := make(chan Attempt, 1)
	go func() {
		a, _ := c.Submit(context.Background(), sess, "7")
		done <- a
	}()
	<-submitter.entry

	_, err = c.Preview(context.Background(), sess, activePolicy("7"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// A preview of another policy leaves the submission alone.
	_, err = c.Preview(context.Background(), sess, activePolicy("8"))
	require.NoError(t, err)

	close(submitter.gate)
	final := <-done
	assert.Equal(t, StateConfirmed, final.State)
}

func TestSubmitRevertedClaimFails(t *testing.T) {
	backend := &fakeBackend{
		policies: []model.PolicyRecord{activePolicy("7")},
		auth:     signedAuth(now.Unix() + 600),
	}
	submitter := &fakeSubmitter{hash: common.HexToHash("0x1"), err: apperr.ChainMsg("transaction reverted: 0x1")}
	c := newCoordinator(backend, submitter)

	got, err := c.Run(context.Background(), signerSession(), "7")
	require.Error(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "transaction reverted: 0x1", got.Message)
	assert.NotContains(t, backend.Calls(), "claims")
}

func TestSubmitRequiresAuthorization(t *testing.T) {
	c := newCoordinator(&fakeBackend{}, &fakeSubmitter{})
	_, err := c.Submit(context.Background(), signerSession(), "7")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = c.Authorize(context.Background(), "7")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPreviewFailureRecordsMessage(t *testing.T) {
	backend := &fakeBackend{previewErr: apperr.Network("policy not claimable", errors.New("409"))}
	c := newCoordinator(backend, &fakeSubmitter{})

	got, err := c.Preview(context.Background(), signerSession(), activePolicy("7"))
	require.Error(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "policy not claimable: 409", got.Message)
}

func TestClaimPollingStopsAfterAttempts(t *testing.T) {
	backend := &fakeBackend{
		policies: []model.PolicyRecord{activePolicy("7")},
		auth:     signedAuth(now.Unix() + 600),
		claims:   []model.ClaimRecord{{ClaimID: "c1", PolicyID: "7", Status: model.ClaimQueued}},
	}
	c := newCoordinator(backend, &fakeSubmitter{hash: common.HexToHash("0xaa")})

	got, err := c.Run(context.Background(), signerSession(), "7")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, got.State)
	require.Len(t, got.Claims, 1)

	polls := 0
	for _, call := range backend.Calls() {
		if call == "claims" {
			polls++
		}
	}
	assert.Equal(t, 3, polls)
}

func TestExecuteArgsDefaults(t *testing.T) {
	auth := model.ClaimAuthorization{Signature: "0x01", ExpiresAt: 99}
	args, err := ExecuteArgs(auth, "42")
	require.NoError(t, err)

	assert.Equal(t, int64(42), args.PolicyID.Int64())
	assert.Equal(t, int64(99), args.Deadline.Int64())
	assert.Equal(t, [32]byte{}, args.RiskID)
	for _, v := range []*big.Int{args.S, args.E, args.Lstar, args.RefValue, args.CurValue, args.Payout, args.Nonce} {
		assert.Equal(t, 0, v.Sign())
	}
	assert.Equal(t, []byte{0x01}, args.Signature)

	_, err = ExecuteArgs(model.ClaimAuthorization{Signature: "0x01"}, "not-a-number")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = ExecuteArgs(model.ClaimAuthorization{}, "1")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
