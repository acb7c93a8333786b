package sqlite

import (
	"errors"
	"testing"

	"github.com/xraph/topup"
)

func TestPlaceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"insufficient", errors.New("sqlite: topup: insufficient credit (1811)"), topup.ErrInsufficientCredit},
		{"missing customer", errors.New("topup: customer not found"), topup.ErrCustomerNotFound},
		{"duplicate", errors.New("UNIQUE constraint failed: topup_orders.id"), topup.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := placeError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("placeError = %v, want %v", got, tt.want)
			}
		})
	}

	cause := errors.New("disk I/O error")
	if got := placeError(cause); !errors.Is(got, cause) {
		t.Errorf("unknown errors should be wrapped, got %v", got)
	}
}

func TestPlaceholders(t *testing.T) {
	for n, want := range map[int]string{1: "?", 3: "?, ?, ?"} {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
