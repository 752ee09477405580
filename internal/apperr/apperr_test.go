package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("settle: %w", MissingConfig("distributor"))

	require.Equal(t, KindConfiguration, KindOf(err))
	assert.True(t, errors.Is(err, &Error{Kind: KindConfiguration}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNetwork}))
	assert.Equal(t, "distributor not configured", Message(err))
}

func TestChainShortensMessage(t *testing.T) {
	err := Chain("send buyPolicy", errors.New("execution reverted: bad signature\nstack: ..."))

	assert.Equal(t, KindChain, KindOf(err))
	assert.Equal(t, "send buyPolicy: execution reverted: bad signature", Message(err))

	again := Chain("outer", err)
	assert.Same(t, err, again)
}

func TestPresent(t *testing.T) {
	ok := Present(nil, "0x1234567890abcdef1234567890abcdef")
	assert.Equal(t, TerminalSuccess, ok.Terminal)
	assert.Equal(t, "0x1234…cdef", ok.TxRef)

	blocked := Present(MissingConfig("payout-module"), "")
	assert.Equal(t, TerminalBlocked, blocked.Terminal)
	assert.False(t, blocked.Retryable)

	failed := Present(Network("create policy draft", errors.New("boom")), "")
	assert.Equal(t, TerminalError, failed.Terminal)
	assert.True(t, failed.Retryable)

	superseded := Present(ErrSuperseded, "")
	assert.False(t, superseded.Retryable)
}

func TestShortenHex(t *testing.T) {
	assert.Equal(t, "", ShortenHex("", 4))
	assert.Equal(t, "0xabcd", ShortenHex("0xabcd", 4))
	assert.Equal(t, "0xaaaa…bbbb", ShortenHex("0xaaaa0000bbbb", 4))
}
