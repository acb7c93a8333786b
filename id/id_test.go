package id_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/xraph/topup/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PlanID", id.NewPlanID, "plan_"},
		{"OrderID", id.NewOrderID, "ord_"},
		{"ReferralID", id.NewReferralID, "ref_"},
		{"NotificationID", id.NewNotificationID, "ntf_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"PlanID", id.NewPlanID, id.ParsePlanID},
		{"OrderID", id.NewOrderID, id.ParseOrderID},
		{"ReferralID", id.NewReferralID, id.ParseReferralID},
		{"NotificationID", id.NewNotificationID, id.ParseNotificationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	orderID := id.NewOrderID().String()
	if _, err := id.ParsePlanID(orderID); err == nil {
		t.Errorf("expected ParsePlanID to reject %q", orderID)
	}

	planID := id.NewPlanID().String()
	if _, err := id.ParseOrderID(planID); err == nil {
		t.Errorf("expected ParseOrderID to reject %q", planID)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := id.Parse("")
	if !errors.Is(err, id.ErrEmpty) {
		t.Errorf("Parse(\"\") = %v, want ErrEmpty", err)
	}

	for _, in := range []string{"not a typeid", "user_01h2xcejqtf2nbrexx3vqjhp41"} {
		_, err := id.Parse(in)
		var pe *id.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) = %v, want *ParseError", in, err)
			continue
		}
		if pe.Input != in {
			t.Errorf("ParseError.Input = %q, want %q", pe.Input, in)
		}
	}
}

func TestPrefixKnown(t *testing.T) {
	for _, p := range []id.Prefix{id.PrefixPlan, id.PrefixOrder, id.PrefixReferral, id.PrefixNotification} {
		if !p.Known() {
			t.Errorf("%q should be known", p)
		}
	}
	if id.Prefix("user").Known() {
		t.Error("user should not be a known prefix")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("nil ID Prefix() = %q, want empty", i.Prefix())
	}

	v, err := i.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v != nil {
		t.Errorf("nil ID Value() = %v, want nil", v)
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewOrderID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("got %q, want %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil ID after unmarshalling empty text")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewReferralID()
	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var fromString id.ID
	if err := fromString.Scan(v); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("got %q, want %q", fromString.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte): %v", err)
	}
	if fromBytes.String() != original.String() {
		t.Errorf("got %q, want %q", fromBytes.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("expected nil ID after Scan(nil)")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s := id.NewOrderID().String()
		if _, ok := seen[s]; ok {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}
