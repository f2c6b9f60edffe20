package identity

import (
	"errors"
	"testing"
)

func TestDeriveKeyFormat(t *testing.T) {
	t.Parallel()
	got := DeriveKey("tenant1", "purge_messages", 1)
	if got != "tenant1:purge_messages-v1" {
		t.Fatalf("DeriveKey = %q, want %q", got, "tenant1:purge_messages-v1")
	}
}

func TestDeriveKeyInjective(t *testing.T) {
	t.Parallel()
	triples := []struct {
		tenant  string
		job     string
		version int
	}{
		{"tenant1", "purge_messages", 1},
		{"tenant1", "purge_messages", 2},
		{"tenant1", "purge_messages", 12},
		{"tenant2", "purge_messages", 1},
		{"tenant1", "purge", 1},
		{"tenant", "1purge", 1},
		{"t", "x", 1},
		{"t", "x", 11},
	}
	seen := map[string]int{}
	for i, tr := range triples {
		if err := ValidateIDs(tr.tenant, tr.job, tr.version); err != nil {
			t.Fatalf("ValidateIDs(%v): %v", tr, err)
		}
		key := DeriveKey(tr.tenant, tr.job, tr.version)
		if prev, dup := seen[key]; dup {
			t.Fatalf("collision: triples %d and %d both derive %q", prev, i, key)
		}
		seen[key] = i
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	t.Parallel()
	tenant, job, version, err := ParseKey("tenant1:purge_messages-v3")
	if err != nil {
		t.Fatalf("ParseKey error: %v", err)
	}
	if tenant != "tenant1" || job != "purge_messages" || version != 3 {
		t.Fatalf("ParseKey = (%q, %q, %d)", tenant, job, version)
	}
}

func TestParseKeyMalformed(t *testing.T) {
	t.Parallel()
	keys := []string{
		"",
		"tenant1",
		"tenant1:job",
		"tenant1:job-v",
		"tenant1:job-v0",
		"tenant1:job-vx",
		":job-v1",
		"tenant1:-v1",
		"tenant1:job-v-1",
	}
	for _, key := range keys {
		if _, _, _, err := ParseKey(key); !errors.Is(err, ErrMalformed) {
			t.Fatalf("ParseKey(%q): want ErrMalformed, got %v", key, err)
		}
	}
}

func TestValidateIDsRejectsDelimiters(t *testing.T) {
	t.Parallel()
	if err := ValidateIDs("ten:ant", "job", 1); err == nil {
		t.Fatal("expected error for tenant containing ':'")
	}
	if err := ValidateIDs("tenant", "job-v2", 1); err == nil {
		t.Fatal("expected error for job containing '-v'")
	}
	if err := ValidateIDs("tenant", "job", 0); err == nil {
		t.Fatal("expected error for non-positive version")
	}
}

func TestCalendarKeyIncludesTenant(t *testing.T) {
	t.Parallel()
	a := CalendarKey("tenant1", "holidays")
	b := CalendarKey("tenant2", "holidays")
	if a == b {
		t.Fatalf("calendar keys for different tenants collide: %q", a)
	}
}
