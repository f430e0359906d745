package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/roperia/roperia/internal/services/trade/domain"
)

func TestResultFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{
			name: "nil error succeeds",
			err:  nil,
		},
		{
			name:        "domain refusal surfaces verbatim",
			err:         fmt.Errorf("%w: garment-1", domain.ErrGarmentSaturated),
			wantMessage: "garment already has the maximum number of active proposals: garment-1",
		},
		{
			name:        "wrapped validation error surfaces verbatim",
			err:         fmt.Errorf("%w: offered garment id is required", domain.ErrInvalidInput),
			wantMessage: "invalid input: offered garment id is required",
		},
		{
			name:        "lost race collapses to the retry message",
			err:         fmt.Errorf("accept proposal-1: %w", domain.ErrStateChanged),
			wantMessage: "state changed, refresh and retry",
		},
		{
			name:        "permission refusal hides the detail",
			err:         fmt.Errorf("%w: user mallory is not a party", domain.ErrNotPermitted),
			wantMessage: "not permitted",
		},
		{
			name:        "infrastructure fault hides the detail",
			err:         errors.New("sqlite: database is locked"),
			wantMessage: "operation temporarily unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := resultFromError("test operation", tc.err)
			if wantSuccess := tc.err == nil; result.Success != wantSuccess {
				t.Errorf("Success = %v, want %v", result.Success, wantSuccess)
			}
			if result.Message != tc.wantMessage {
				t.Errorf("Message = %q, want %q", result.Message, tc.wantMessage)
			}
		})
	}
}

func TestEveryRefusalSurfacesVerbatim(t *testing.T) {
	t.Parallel()

	for _, refusal := range refusals {
		result := resultFromError("test operation", fmt.Errorf("%w: detail", refusal))
		if result.Success {
			t.Errorf("%v: refused operation reported success", refusal)
		}
		if want := refusal.Error() + ": detail"; result.Message != want {
			t.Errorf("%v: Message = %q, want %q", refusal, result.Message, want)
		}
	}
}
