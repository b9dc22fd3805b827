// Package validation provides centralized input validation for filestall.
//
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xtxerr/filestall/internal/errors"
	"github.com/xtxerr/filestall/internal/iostats"
)

// =============================================================================
// Role Filter
// =============================================================================

// RoleFilter restricts a report to one file role. The accepted values form a
// closed set: "data", "log" and "all" (or empty, meaning no filter). Anything
// else is a request error, never silently ignored.
type RoleFilter string

const (
	RoleFilterAll  RoleFilter = "all"
	RoleFilterData RoleFilter = "data"
	RoleFilterLog  RoleFilter = "log"
)

// ParseRoleFilter parses a role filter string. An empty string means no
// filter and is equivalent to "all".
func ParseRoleFilter(s string) (RoleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return RoleFilterAll, nil
	case "data":
		return RoleFilterData, nil
	case "log":
		return RoleFilterLog, nil
	default:
		return "", fmt.Errorf("%w: %q (expected data, log or all)", errors.ErrInvalidRoleFilter, s)
	}
}

// Matches reports whether a file role passes the filter.
func (f RoleFilter) Matches(role iostats.FileRole) bool {
	switch f {
	case RoleFilterData:
		return role == iostats.RoleData
	case RoleFilterLog:
		return role == iostats.RoleLog
	default:
		return true
	}
}

// =============================================================================
// Lookback
// =============================================================================

// MaxLookback bounds historical report windows. A year of hourly snapshots
// is already far beyond what the dense matrix is meant for.
const MaxLookback = 366 * 24 * time.Hour

// ValidateLookback validates a historical report lookback duration.
func ValidateLookback(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s (must be positive)", errors.ErrInvalidLookback, d)
	}
	if d > MaxLookback {
		return fmt.Errorf("%w: %s (maximum %s)", errors.ErrInvalidLookback, d, MaxLookback)
	}
	return nil
}

// =============================================================================
// Database Name
// =============================================================================

// ValidateDatabaseName validates a database name filter value. An empty name
// is valid and means no filter.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > 128 {
		return fmt.Errorf("database name too long: maximum 128 characters")
	}
	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("database name cannot contain control characters at position %d", i)
		}
	}
	return nil
}

// =============================================================================
// Identifiers
// =============================================================================

// ValidateIdentifier validates a simple SQL identifier such as the bench
// scratch table name. Identifiers are never composed from user input into
// query text elsewhere; this guards the single place where one is.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("identifier too long: maximum 128 characters")
	}
	for i, r := range name {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return fmt.Errorf("invalid character '%c' at position %d", r, i)
	}
	return nil
}

// =============================================================================
// DSN
// =============================================================================

// ValidateDSN checks that a SQL Server connection string is present and
// plausibly formed. Full parsing is the driver's job.
func ValidateDSN(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.NewMissingField("sqlserver.dsn")
	}
	return nil
}
