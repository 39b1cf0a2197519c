package auth

import (
	"testing"
	"time"
)

func TestIdentity_Valid(t *testing.T) {
	if (Identity{}).Valid() {
		t.Fatalf("empty identity should be invalid")
	}
	if (Identity{UserID: "  "}).Valid() {
		t.Fatalf("blank user id should be invalid")
	}
	if !(Identity{UserID: "alice"}).Valid() {
		t.Fatalf("expected valid identity")
	}
}

func TestIdentity_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if (Identity{UserID: "u"}).Expired(now) {
		t.Fatalf("identity without expiry never expires")
	}
	if !(Identity{UserID: "u", ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatalf("expected expired identity")
	}
	if (Identity{UserID: "u", ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("did not expect expired identity")
	}
}
