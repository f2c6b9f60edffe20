// Package identity derives the schedule keys that address jobs in the
// scheduling engine. A key is built from (tenant, job, version) and is the
// single addressing scheme shared by registration and run-now triggering.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key delimiters. Tenant and job IDs must not contain them; with that
// constraint DeriveKey is injective (ParseKey inverts it exactly).
const (
	tenantSep  = ":"
	versionSep = "-v"
)

var ErrMalformed = errors.New("identity: malformed schedule key")

// DeriveKey maps (tenant, job, version) to the engine schedule key,
// e.g. ("tenant1", "purge_messages", 1) -> "tenant1:purge_messages-v1".
func DeriveKey(tenantID, jobID string, version int) string {
	return tenantID + tenantSep + jobID + versionSep + strconv.Itoa(version)
}

// CalendarKey scopes a calendar name per tenant inside the engine's shared
// calendar namespace, so "holidays" in two tenants never collide.
func CalendarKey(tenantID, calendarName string) string {
	return tenantID + tenantSep + "cal" + tenantSep + calendarName
}

// ValidateIDs rejects tenant/job IDs that would break key injectivity.
func ValidateIDs(tenantID, jobID string, version int) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.New("identity: tenant id required")
	}
	if strings.TrimSpace(jobID) == "" {
		return errors.New("identity: job id required")
	}
	if version <= 0 {
		return fmt.Errorf("identity: version must be positive, got %d", version)
	}
	for _, sep := range []string{tenantSep, versionSep} {
		if strings.Contains(tenantID, sep) {
			return fmt.Errorf("identity: tenant id %q must not contain %q", tenantID, sep)
		}
		if strings.Contains(jobID, sep) {
			return fmt.Errorf("identity: job id %q must not contain %q", jobID, sep)
		}
	}
	return nil
}

// ParseKey inverts DeriveKey. It returns ErrMalformed for anything that
// DeriveKey could not have produced from valid IDs.
func ParseKey(key string) (tenantID, jobID string, version int, err error) {
	tenantID, rest, ok := strings.Cut(key, tenantSep)
	if !ok || tenantID == "" || rest == "" {
		return "", "", 0, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	i := strings.LastIndex(rest, versionSep)
	if i <= 0 {
		return "", "", 0, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	jobID = rest[:i]
	v, convErr := strconv.Atoi(rest[i+len(versionSep):])
	if convErr != nil || v <= 0 {
		return "", "", 0, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	if err := ValidateIDs(tenantID, jobID, v); err != nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrMalformed, key)
	}
	return tenantID, jobID, v, nil
}
