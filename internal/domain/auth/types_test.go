package auth

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"teacher":   RoleTeacher,
		" Officer ": RoleOfficer,
		"STUDENT":   RoleStudent,
		"":          Role(""),
		"admin":     Role("admin"),
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range Roles() {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if Role("").Valid() || Role("admin").Valid() {
		t.Fatalf("did not expect empty or unknown roles to be valid")
	}
}

func TestSession_StateAt(t *testing.T) {
	now := time.Now()

	if got := (Session{}).StateAt(now); got != StateAbsent {
		t.Fatalf("empty session state = %v", got)
	}
	if got := (Session{Token: "   "}).StateAt(now); got != StateAbsent {
		t.Fatalf("blank token state = %v", got)
	}
	if got := (Session{Token: "T1"}).StateAt(now); got != StateValid {
		t.Fatalf("no-expiry session state = %v", got)
	}
	if got := (Session{Token: "T1", ExpiresAt: now.Add(time.Minute)}).StateAt(now); got != StateValid {
		t.Fatalf("future expiry state = %v", got)
	}
	if got := (Session{Token: "T1", ExpiresAt: now}).StateAt(now); got != StateExpired {
		t.Fatalf("expired session state = %v", got)
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	if got := (Identity{Username: "zhang3", RealName: "张三"}).DisplayName(); got != "张三" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := (Identity{Username: "zhang3"}).DisplayName(); got != "zhang3" {
		t.Fatalf("DisplayName fallback = %q", got)
	}
}
