package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{CUP(1000), "CUP 10.00"},
		{CUP(-1), "CUP -0.01"},
		{USD(4900), "$49.00"},
		{EUR(19900), "€199.00"},
		{New(250, "MLC"), "MLC 2.50"},
		{New(100, "jpy"), "¥100"},
		{New(5, "xyz"), "XYZ 0.05"},
		{Zero("CUP"), "CUP 0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.money.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := CUP(100).Add(CUP(250)); !got.Equal(CUP(350)) {
		t.Errorf("Add = %v", got)
	}
	if got := CUP(100).Subtract(CUP(300)); !got.Equal(CUP(-200)) {
		t.Errorf("Subtract = %v", got)
	}
	if !CUP(50).LessThan(CUP(100)) || CUP(100).LessThan(CUP(100)) {
		t.Error("LessThan is wrong")
	}
	if !CUP(200).GreaterThan(CUP(100)) {
		t.Error("GreaterThan is wrong")
	}
	if CUP(100).Equal(USD(100)) {
		t.Error("different currencies must not be equal")
	}
	if !CUP(0).IsZero() || !CUP(1).IsPositive() || !CUP(-1).IsNegative() {
		t.Error("predicates are wrong")
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	_ = CUP(100).Add(USD(100))
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     Money
	}{
		{"250", "cup", CUP(25000)},
		{"250.5", "CUP", CUP(25050)},
		{"1,250.50", "cup", CUP(125050)},
		{" 0.01 ", "cup", CUP(1)},
		{"-3.00", "usd", USD(-300)},
		{"100", "jpy", New(100, "jpy")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMajor(tt.in, tt.currency)
			if err != nil {
				t.Fatalf("ParseMajor: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "abc", "1.234", "1.", ".5", "1.2.3"} {
		if _, err := ParseMajor(bad, "cup"); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseMajor(%q) = %v, want ErrInvalidAmount", bad, err)
		}
	}
	if _, err := ParseMajor("1.5", "jpy"); err == nil {
		t.Error("jpy has no minor unit")
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(CUP(1800))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"amount":1800,"currency":"cup","display":"CUP 18.00"}`; string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(CUP(1800)) {
		t.Errorf("round trip = %v", back)
	}
}
