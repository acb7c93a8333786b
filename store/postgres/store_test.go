package postgres

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`ERROR: duplicate key value violates unique constraint "topup_customers_referral_code_key" (SQLSTATE 23505)`, true},
		{"SQLSTATE 23505", true},
		{`ERROR: new row for relation "topup_customers" violates check constraint`, false},
	}
	for _, tt := range tests {
		if got := isUniqueViolation(errors.New(tt.msg)); got != tt.want {
			t.Errorf("isUniqueViolation(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
