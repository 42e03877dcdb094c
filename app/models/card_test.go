package models

import (
	"testing"
	"time"
)

func TestIsCardExpiringSoon(t *testing.T) {
	compare := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{name: "already expired", exp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "inside threshold", exp: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "exactly at threshold", exp: time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC), want: true},
		{name: "outside threshold", exp: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), want: false},
		{name: "far future", exp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		if got := IsCardExpiringSoon(compare, tt.exp); got != tt.want {
			t.Fatalf("%s: IsCardExpiringSoon() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCardExpiryDate(t *testing.T) {
	got := CardExpiryDate(2027, 11)
	want := time.Date(2027, 11, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("CardExpiryDate(2027, 11) = %v, want %v", got, want)
	}
}

func TestSubscriptionHasPendingPlanChange(t *testing.T) {
	sub := &Subscription{PlanID: "price_monthly", NewPlanID: "price_monthly"}
	if sub.HasPendingPlanChange() {
		t.Fatal("expected no pending plan change when plan ids match")
	}
	sub.NewPlanID = "price_yearly"
	if !sub.HasPendingPlanChange() {
		t.Fatal("expected pending plan change when plan ids differ")
	}
}
