package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBearer(t *testing.T) {
	keys := []string{"key-one", "key-two"}

	tests := []struct {
		name    string
		header  string
		keys    []string
		wantErr error
	}{
		{name: "first key", header: "Bearer key-one", keys: keys},
		{name: "second key", header: "Bearer key-two", keys: keys},
		{name: "scheme is case insensitive", header: "bearer key-one", keys: keys},
		{name: "missing header", header: "", keys: keys, wantErr: ErrMissingAPIKey},
		{name: "basic scheme", header: "Basic a2V5LW9uZQ==", keys: keys, wantErr: ErrMalformedAuthorization},
		{name: "no token", header: "Bearer ", keys: keys, wantErr: ErrMalformedAuthorization},
		{name: "token without scheme", header: "key-one", keys: keys, wantErr: ErrMalformedAuthorization},
		{name: "unknown key", header: "Bearer key-three", keys: keys, wantErr: ErrInvalidAPIKey},
		{name: "prefix of a key", header: "Bearer key-", keys: keys, wantErr: ErrInvalidAPIKey},
		{name: "no keys configured", header: "Bearer key-one", keys: nil, wantErr: ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBearer(tt.header, tt.keys)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
