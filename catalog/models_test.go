package catalog_test

import (
	"testing"

	"github.com/xraph/topup/catalog"
)

func TestDefaultPlans(t *testing.T) {
	plans := catalog.DefaultPlans("cup")
	if len(plans) != 10 {
		t.Fatalf("expected 10 plans, got %d", len(plans))
	}

	perCategory := map[string]int{}
	seen := map[string]bool{}
	for _, p := range plans {
		if !p.Active {
			t.Errorf("plan %q should be active", p.Name)
		}
		if !p.Price.IsPositive() {
			t.Errorf("plan %q has non-positive price %v", p.Name, p.Price)
		}
		if p.Price.Currency != "cup" {
			t.Errorf("plan %q currency = %q, want cup", p.Name, p.Price.Currency)
		}
		if seen[p.ID.String()] {
			t.Errorf("duplicate plan id %s", p.ID)
		}
		seen[p.ID.String()] = true
		perCategory[p.Category]++
	}

	want := map[string]int{catalog.CategoryData: 1, catalog.CategoryVoice: 5, catalog.CategorySMS: 4}
	for cat, n := range want {
		if perCategory[cat] != n {
			t.Errorf("category %s: got %d plans, want %d", cat, perCategory[cat], n)
		}
	}
}

func TestDefaultPlansFreshIDs(t *testing.T) {
	a := catalog.DefaultPlans("cup")
	b := catalog.DefaultPlans("cup")
	if a[0].ID.String() == b[0].ID.String() {
		t.Error("expected each call to generate new plan IDs")
	}
}
