package handler

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobstore/internal/api/storage"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	encoded := EncodeJobCursor(&storage.JobCursor{AfterID: 42})

	cursor, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor.AfterID)
}

func TestDecodeJobCursor(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name    string
		input   string
		wantNil bool
		wantErr bool
	}{
		{name: "empty", input: "", wantNil: true},
		{name: "not base64", input: "%%%", wantErr: true},
		{name: "missing separator", input: b64("42"), wantErr: true},
		{name: "wrong prefix", input: b64("ts|42"), wantErr: true},
		{name: "not a number", input: b64("id|forty"), wantErr: true},
		{name: "negative", input: b64("id|-1"), wantErr: true},
		{name: "max int64", input: b64("id|9223372036854775807"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
