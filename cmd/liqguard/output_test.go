package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/model"
)

func TestPrintPresentation(t *testing.T) {
	cases := []struct {
		err  error
		tx   string
		want string
	}{
		{nil, "0x1234567890abcdef", "success: confirmed 0x1234…cdef\n"},
		{apperr.MissingConfig("distributor"), "", "configuration required: distributor not configured\n"},
		{apperr.Network("Bad Gateway", nil), "", "error: Bad Gateway (retry)\n"},
		{apperr.ErrSuperseded, "", "error: superseded by a newer request\n"},
		{errors.New("boom\nstack"), "", "error: boom (retry)\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		printPresentation(&buf, apperr.Present(tc.err, tc.tx))
		if buf.String() != tc.want {
			t.Fatalf("printPresentation(%v) = %q, want %q", tc.err, buf.String(), tc.want)
		}
	}
}

func TestDraftFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts", "d1.json")
	draft := model.PolicyDraft{
		DraftID:       "d1",
		Product:       model.ProductDepegLP,
		PremiumUSD:    4.2,
		QuoteDeadline: 1_700_000_000,
		PremiumAtomic: "4200000",
	}
	require.NoError(t, saveDraft(path, draft))

	loaded, err := loadDraft(path)
	require.NoError(t, err)
	assert.Equal(t, "d1", loaded.DraftID)
	assert.Equal(t, "4200000", loaded.AtomicPremium())
	assert.Equal(t, uint64(1_700_000_000), loaded.Deadline())

	_, err = loadDraft(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
