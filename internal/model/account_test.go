package model_test

import (
	"testing"

	"coinwallet/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCPF(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123.456.789-09", "12345678909"},
		{"12345678909", "12345678909"},
		{"000.000.000-00", "00000000000"},
		{"123 456 789 09", "12345678909"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, model.NormalizeCPF(tc.in), "input %q", tc.in)
	}
}

func TestLedgerEntrySignedAmount(t *testing.T) {
	amount := decimal.NewFromInt(25)

	cases := []struct {
		kind   string
		credit bool
	}{
		{model.EntryKindDeposit, true},
		{model.EntryKindTransferIn, true},
		{model.EntryKindWithdrawal, false},
		{model.EntryKindTransferOut, false},
	}

	for _, tc := range cases {
		entry := &model.LedgerEntry{Kind: tc.kind, Amount: amount}
		assert.Equal(t, tc.credit, entry.IsCredit(), "kind %s", tc.kind)
		if tc.credit {
			assert.True(t, entry.SignedAmount().Equal(amount), "kind %s", tc.kind)
		} else {
			assert.True(t, entry.SignedAmount().Equal(amount.Neg()), "kind %s", tc.kind)
		}
	}
}
