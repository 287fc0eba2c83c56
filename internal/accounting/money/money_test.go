package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1250.00", want: "1250.00"},
		{in: " 10.5 ", want: "10.50"},
		{in: "", want: "0.00"},
		{in: "0.001", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, Format(got))
		})
	}
}

func TestMinorRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1250.35")
	assert.Equal(t, int64(125035), Minor(d))
	assert.True(t, FromMinor(125035).Equal(d))
	assert.Equal(t, Value{Amount: "1250.35", Minor: 125035}, ToValue(d))
}

func TestSumAvoidsFloatDrift(t *testing.T) {
	parts := make([]decimal.Decimal, 0, 10)
	for i := 0; i < 10; i++ {
		parts = append(parts, decimal.RequireFromString("0.10"))
	}
	assert.Equal(t, "1.00", Format(Sum(parts...)))
}
