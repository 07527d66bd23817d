package domain

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		userID   string
		guestID  string
		wantKind IdentityKind
		wantID   string
	}{
		{"registered wins", "u1", "g1", RegisteredUser, "u1"},
		{"guest fallback", "", "g1", GuestUser, "g1"},
		{"blank user id ignored", "   ", "g1", GuestUser, "g1"},
		{"anonymous", "", "", Anonymous, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := Resolve(tc.userID, tc.guestID)
			if id.Kind() != tc.wantKind || id.String() != tc.wantID {
				t.Fatalf("Resolve(%q, %q) = %v/%q, want %v/%q", tc.userID, tc.guestID, id.Kind(), id.String(), tc.wantKind, tc.wantID)
			}
		})
	}
}

func TestIdentityMatches(t *testing.T) {
	if Resolve("", "").Matches("") {
		t.Fatal("anonymous must never match, not even an empty creator")
	}
	// registered and guest ids share one string space
	if !Registered("abc").Matches("abc") || !Guest("abc").Matches("abc") {
		t.Fatal("identities compare by value")
	}
	if Guest("abc").Matches("abd") {
		t.Fatal("different ids must not match")
	}
}

func TestIdentityValidate(t *testing.T) {
	if err := Guest(strings.Repeat("x", MaxIdentityLen+1)).Validate(); err != ErrIdentityTooLong {
		t.Fatalf("expected ErrIdentityTooLong, got %v", err)
	}
	if err := Guest("ok").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCleanDisplayName(t *testing.T) {
	got, err := CleanDisplayName("  DJ Nova ", "x")
	if err != nil || got != "DJ Nova" {
		t.Fatalf("got %q, %v", got, err)
	}
	got, _ = CleanDisplayName("   ", "Listener")
	if got != "Listener" {
		t.Fatalf("fallback not used: %q", got)
	}
	if _, err := CleanDisplayName(strings.Repeat("n", MaxDisplayNameLen+1), ""); err != ErrDisplayNameTooLong {
		t.Fatalf("expected ErrDisplayNameTooLong, got %v", err)
	}
}

func TestNewMemberDefaults(t *testing.T) {
	m := NewMember("c1", "", "", Guest("g1"))
	if m.DisplayName != DefaultDisplayName || m.Color == "" || m.Identity != "g1" {
		t.Fatalf("unexpected member: %+v", m)
	}
	if ColorFor("c1") != m.Color {
		t.Fatal("color must be stable per key")
	}
}
