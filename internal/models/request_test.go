package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("done")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		raw     string
		all     bool
		status  RequestStatus
		wantErr bool
	}{
		{raw: "", all: true},
		{raw: "all", all: true},
		{raw: "pending", status: StatusPending},
		{raw: "completed", status: StatusCompleted},
		{raw: "in_progress", status: StatusInProgress},
		{raw: "archived", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f, err := ParseStatusFilter(tt.raw)
			if tt.wantErr {
				var v *ValidationError
				require.True(t, errors.As(err, &v))
				assert.Equal(t, "status", v.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.all, f.All())
			assert.Equal(t, tt.status, f.Status)
		})
	}
}
