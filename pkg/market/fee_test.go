package market

import (
	"errors"
	"math"
	"testing"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		bps     int64
		want    int64
		wantErr error
	}{
		{name: "typical rate", amount: 100000, bps: 250, want: 2500},
		{name: "small bid", amount: 10000, bps: 250, want: 250},
		{name: "zero rate", amount: 100000, bps: 0, want: 0},
		{name: "full rate", amount: 100000, bps: 10000, want: 100000},
		{name: "truncating division", amount: 99, bps: 250, want: 2}, // 99*250/10000 = 2.475
		{name: "zero amount", amount: 0, bps: 250, want: 0},
		{name: "negative amount", amount: -1, bps: 250, wantErr: ErrInvalidAmount},
		{name: "negative rate", amount: 100, bps: -1, wantErr: ErrInvalidFeeRate},
		{name: "rate above cap", amount: 100, bps: 10001, wantErr: ErrInvalidFeeRate},
		{name: "product overflows", amount: math.MaxInt64/250 + 1, bps: 250, wantErr: ErrArithmeticOverflow},
		{name: "sum overflows at low rate", amount: math.MaxInt64 - 1, bps: 1, wantErr: ErrArithmeticOverflow},
		{name: "max amount at zero rate", amount: math.MaxInt64, bps: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeFee(tt.amount, tt.bps)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ComputeFee(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
			}
		})
	}
}

func TestComputeFeeDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		fee, err := ComputeFee(100000, 250)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fee != 2500 {
			t.Fatalf("fee = %d, want 2500", fee)
		}
	}
}
