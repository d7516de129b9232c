package integration_test

import (
	"strings"
	"testing"

	"okrdraft/internal/audit"
)

func auditEvents(t *testing.T, dbPath string) []audit.Event {
	t.Helper()
	events, err := audit.NewLogger(dbPath).Recent(1000)
	if err != nil {
		t.Fatalf("read audit events from %s: %v", dbPath, err)
	}
	return events
}

func requireAuditEvents(t *testing.T, dbPath string, want []string) {
	t.Helper()
	seen := make(map[string]int)
	for _, ev := range auditEvents(t, dbPath) {
		seen[ev.Type]++
	}
	for _, eventType := range want {
		if seen[eventType] == 0 {
			t.Fatalf("missing audit event %s in %s", eventType, dbPath)
		}
	}
}

// requireNoSecrets fails when any stored payload carries the given value.
func requireNoSecrets(t *testing.T, dbPath string, secrets ...string) {
	t.Helper()
	for _, ev := range auditEvents(t, dbPath) {
		for _, secret := range secrets {
			if strings.Contains(ev.Payload, secret) {
				t.Fatalf("audit event %s leaks %q: %s", ev.Type, secret, ev.Payload)
			}
		}
	}
}
