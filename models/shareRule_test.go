package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func pct(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateSharePercentages(t *testing.T) {
	cases := []struct {
		name    string
		lines   []NewShareRuleLine
		wantErr bool
	}{
		{
			name: "fifty fifty",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("50")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("50")},
			},
		},
		{
			name: "fractional split reconstructs 100",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("33.3333")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("66.6667")},
			},
		},
		{
			name: "kamdari excluded from the split total",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("60")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("40")},
				{PartyId: "p3", Role: PartyRoleKamdar, Percentage: pct("10")},
			},
		},
		{
			name: "landlord only at 100",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("100")},
			},
			wantErr: true,
		},
		{
			name: "two landlord lines",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("25")},
				{PartyId: "p2", Role: PartyRoleLandlord, Percentage: pct("25")},
				{PartyId: "p3", Role: PartyRoleHari, Percentage: pct("50")},
			},
			wantErr: true,
		},
		{
			name: "hari without landlord",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleHari, Percentage: pct("100")},
				{PartyId: "p2", Role: PartyRoleKamdar, Percentage: pct("10")},
			},
			wantErr: true,
		},
		{
			name: "two kamdar lines",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("50")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("50")},
				{PartyId: "p3", Role: PartyRoleKamdar, Percentage: pct("5")},
				{PartyId: "p4", Role: PartyRoleKamdar, Percentage: pct("5")},
			},
			wantErr: true,
		},
		{
			name: "split short of 100",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("50")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("49.9999")},
			},
			wantErr: true,
		},
		{
			name: "split over 100",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("60")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("50")},
			},
			wantErr: true,
		},
		{
			name: "negative percentage",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("-10")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("110")},
			},
			wantErr: true,
		},
		{
			name: "kamdari above 100",
			lines: []NewShareRuleLine{
				{PartyId: "p1", Role: PartyRoleLandlord, Percentage: pct("50")},
				{PartyId: "p2", Role: PartyRoleHari, Percentage: pct("50")},
				{PartyId: "p3", Role: PartyRoleKamdar, Percentage: pct("150")},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSharePercentages(tc.lines)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestShareRuleRoleLookups(t *testing.T) {
	rule := ShareRule{
		Lines: []ShareRuleLine{
			{PartyId: "ll", Role: PartyRoleLandlord, Percentage: pct("60")},
			{PartyId: "hr", Role: PartyRoleHari, Percentage: pct("40")},
		},
	}
	if got := rule.PercentageFor(PartyRoleLandlord); !got.Equal(pct("60")) {
		t.Fatalf("landlord percentage = %s; want 60", got.String())
	}
	if got := rule.PercentageFor(PartyRoleKamdar); !got.IsZero() {
		t.Fatalf("kamdar percentage = %s; want 0", got.String())
	}
	if got := rule.PartyFor(PartyRoleLandlord); got != "ll" {
		t.Fatalf("PartyFor(landlord) = %q; want the landlord line's party", got)
	}
	if got := rule.PartyFor(PartyRoleKamdar); got != "" {
		t.Fatalf("PartyFor(kamdar) = %q; want empty", got)
	}
}
