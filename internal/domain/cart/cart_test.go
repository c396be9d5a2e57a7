package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineTotal(t *testing.T) {
	l := Line{ProductID: 1, Quantity: 3, UnitPrice: d("19.90")}
	assert.True(t, l.Total().Equal(d("59.70")))
}

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  string
	}{
		{
			name: "empty cart",
			want: "0",
		},
		{
			name: "single line",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("50")},
			},
			want: "100",
		},
		{
			name: "multiple lines",
			lines: []Line{
				{ProductID: 1, Quantity: 2, UnitPrice: d("50")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("19.90")},
				{ProductID: 3, Quantity: 3, UnitPrice: d("0.10")},
			},
			want: "120.20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtotal(tt.lines)
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		wantErr string
	}{
		{
			name:    "empty cart",
			lines:   nil,
			wantErr: "no items",
		},
		{
			name: "missing product id",
			lines: []Line{
				{Quantity: 1, UnitPrice: d("10")},
			},
			wantErr: "missing product id",
		},
		{
			name: "zero quantity",
			lines: []Line{
				{ProductID: 1, Quantity: 0, UnitPrice: d("10")},
			},
			wantErr: "quantity must be greater than 0",
		},
		{
			name: "negative price",
			lines: []Line{
				{ProductID: 1, Quantity: 1, UnitPrice: d("-1")},
			},
			wantErr: "negative unit price",
		},
		{
			name: "valid cart",
			lines: []Line{
				{ProductID: 1, Quantity: 1, UnitPrice: d("10")},
				{ProductID: 2, CategoryID: 4, Quantity: 2, UnitPrice: d("0")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.lines)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Reason)
		})
	}
}
