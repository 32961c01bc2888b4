package evidence

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name         string
		data         string
		declaredType string
		wantText     string
		wantType     string
	}{
		{
			name:     "base64 data URL",
			data:     "data:text/plain;base64," + b64("Electricity usage was 450 kWh"),
			wantText: "Electricity usage was 450 kWh",
			wantType: "text/plain",
		},
		{
			name:     "percent-encoded data URL",
			data:     "data:text/csv,Date%2CEnergy%0A2024-01-01%2C5",
			wantText: "Date,Energy\n2024-01-01,5",
			wantType: "text/csv",
		},
		{
			name:         "declared type wins over media type",
			data:         "data:application/octet-stream;base64," + b64("hello"),
			declaredType: "text/plain",
			wantText:     "hello",
			wantType:     "text/plain",
		},
		{
			name:     "bare base64",
			data:     b64("Water: 3,200 liters"),
			wantText: "Water: 3,200 liters",
		},
		{
			name:     "wrapped base64",
			data:     b64("Total employees: 1,250")[:12] + "\r\n" + b64("Total employees: 1,250")[12:],
			wantText: "Total employees: 1,250",
		},
		{
			name:         "literal text",
			data:         "  Electricity usage was 450 kWh this month\n",
			declaredType: "text/plain",
			wantText:     "Electricity usage was 450 kWh this month",
			wantType:     "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.data, tt.declaredType)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantType, got.ContentType)
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ErrEmptyPayload},
		{"whitespace", " \n\t ", ErrEmptyPayload},
		{"empty data URL body", "data:text/plain;base64,", ErrEmptyPayload},
		{"nul inside base64", "data:application/pdf;base64,JVBERi0xLjQKJcfs\x00", ErrMalformedBytes},
		{"binary content", "data:application/octet-stream;base64,AAEC", ErrBinaryPayload},
		{"bad base64", "data:text/plain;base64,%%%", ErrMalformedBytes},
		{"missing comma", "data:text/plain;base64", ErrMalformedData},
		{"bad escape", "data:text/plain,100%zz", ErrMalformedData},
		{"binary literal", "\x00\x01\x02", ErrBinaryPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.data, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
