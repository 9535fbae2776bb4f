package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocate(t *testing.T) {
	tests := []struct {
		name                      string
		fee, interest, principal  string
		payment                   string
		wantFee, wantInt, wantPri string
		wantUnapplied             string
	}{
		{
			name: "partial payment covers fee then principal",
			fee:  "300", interest: "0", principal: "10000", payment: "5000",
			wantFee: "300", wantInt: "0", wantPri: "4700", wantUnapplied: "0",
		},
		{
			name: "full payment",
			fee:  "300", interest: "0", principal: "10000", payment: "10300",
			wantFee: "300", wantInt: "0", wantPri: "10000", wantUnapplied: "0",
		},
		{
			name: "payment smaller than fee",
			fee:  "300", interest: "50", principal: "10000", payment: "120.50",
			wantFee: "120.5", wantInt: "0", wantPri: "0", wantUnapplied: "0",
		},
		{
			name: "fee then interest then principal",
			fee:  "100", interest: "50", principal: "1000", payment: "400",
			wantFee: "100", wantInt: "50", wantPri: "250", wantUnapplied: "0",
		},
		{
			name: "fee already settled",
			fee:  "0", interest: "25", principal: "500", payment: "100",
			wantFee: "0", wantInt: "25", wantPri: "75", wantUnapplied: "0",
		},
		{
			name: "overpayment leaves unapplied remainder",
			fee:  "10", interest: "5", principal: "100", payment: "200",
			wantFee: "10", wantInt: "5", wantPri: "100", wantUnapplied: "85",
		},
		{
			name: "sub-cent remainder goes to principal",
			fee:  "50", interest: "10", principal: "100", payment: "60.005",
			wantFee: "50", wantInt: "10", wantPri: "0.005", wantUnapplied: "0",
		},
		{
			name: "sub-cent payment inside fee truncates to principal",
			fee:  "50", interest: "10", principal: "100", payment: "20.009",
			wantFee: "20", wantInt: "0", wantPri: "0.009", wantUnapplied: "0",
		},
		{
			name: "zero payment",
			fee:  "50", interest: "10", principal: "100", payment: "0",
			wantFee: "0", wantInt: "0", wantPri: "0", wantUnapplied: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(d(tt.fee), d(tt.interest), d(tt.principal), d(tt.payment))

			assert.True(t, got.Fee.Equal(d(tt.wantFee)), "fee = %s, want %s", got.Fee, tt.wantFee)
			assert.True(t, got.Interest.Equal(d(tt.wantInt)), "interest = %s, want %s", got.Interest, tt.wantInt)
			assert.True(t, got.Principal.Equal(d(tt.wantPri)), "principal = %s, want %s", got.Principal, tt.wantPri)
			assert.True(t, got.Unapplied.Equal(d(tt.wantUnapplied)), "unapplied = %s, want %s", got.Unapplied, tt.wantUnapplied)
			if tt.payment != "0" {
				assert.True(t, got.Applied().Add(got.Unapplied).Equal(d(tt.payment)), "no cent may be lost")
			}
		})
	}
}

func TestAllocate_NeverExceedsOutstanding(t *testing.T) {
	fee, interest, principal := d("123.45"), d("67.89"), d("1000.01")
	total := fee.Add(interest).Add(principal)
	for _, p := range []string{"0.01", "123.45", "191.34", "500", "1191.35", "5000"} {
		got := Allocate(fee, interest, principal, d(p))
		assert.True(t, got.Applied().LessThanOrEqual(total), "payment %s applied %s > owed %s", p, got.Applied(), total)
		assert.True(t, got.Fee.LessThanOrEqual(fee))
		assert.True(t, got.Interest.LessThanOrEqual(interest))
		assert.True(t, got.Principal.LessThanOrEqual(principal))
	}
}
