package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "0"},
		{in: "1500", want: "1500"},
		{in: "0x64", want: "100"},
		{in: "0x05", want: "5"},
		{in: "0X0000ff", want: "255"},
		{in: "0x00", want: "0"},
		{in: "0x10000000000000000000000000000000000000000000000000000000000000000", wantErr: true},
		{in: "0xzz", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}
