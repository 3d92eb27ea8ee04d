package model

import (
	"testing"
	"time"
)

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleUser, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleManager, false},
		{RoleUser, RoleUser, true},
		// Unknown roles fail-closed.
		{"unknown", RoleUser, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleUser, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestListParamsNormalize(t *testing.T) {
	tests := []struct {
		in   ListParams
		want ListParams
	}{
		{ListParams{}, ListParams{Page: 1, PageSize: DefaultPageSize, Order: OrderAsc}},
		{ListParams{Page: 3, PageSize: 10}, ListParams{Page: 3, PageSize: 10, Order: OrderAsc}},
		{ListParams{Page: -2, PageSize: 1000, Order: "desc"}, ListParams{Page: 1, PageSize: MaxPageSize, Order: OrderDesc}},
		{ListParams{Page: 1, PageSize: 5, Order: "sideways"}, ListParams{Page: 1, PageSize: 5, Order: OrderAsc}},
	}

	for _, tt := range tests {
		got := tt.in.Normalize()
		if got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	if off := (ListParams{Page: 3, PageSize: 10}).Offset(); off != 20 {
		t.Errorf("expected offset 20, got %d", off)
	}
}

func TestInvitationRedeemable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		inv  Invitation
		want bool
	}{
		{"pending no expiry", Invitation{Status: InvitationPending}, true},
		{"pending future expiry", Invitation{Status: InvitationPending, ExpiresAt: &future}, true},
		{"pending expired", Invitation{Status: InvitationPending, ExpiresAt: &past}, false},
		{"accepted", Invitation{Status: InvitationAccepted, ExpiresAt: &future}, false},
		{"revoked", Invitation{Status: InvitationRevoked}, false},
	}

	for _, tt := range tests {
		if got := tt.inv.Redeemable(now); got != tt.want {
			t.Errorf("%s: Redeemable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEditable(t *testing.T) {
	if !(&Lot{Status: LotStatusPending}).Editable() {
		t.Error("expected pending lot to be editable")
	}
	if (&Lot{Status: LotStatusReleased}).Editable() {
		t.Error("expected released lot not to be editable")
	}
	if !(&Invitation{Status: InvitationPending}).Editable() {
		t.Error("expected pending invitation to be editable")
	}
	if (&Invitation{Status: InvitationAccepted}).Editable() {
		t.Error("expected accepted invitation not to be editable")
	}
}
