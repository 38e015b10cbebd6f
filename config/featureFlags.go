package config

import (
	"os"
	"strings"
	"time"
)

// MergeAcceptsStaleVersions switches the v2 merge engine from strict
// version-mismatch rejection to accept-and-log. Per-deployment choice:
// sites with flaky scanner connectivity prefer never rejecting a batch.
//
// Set via env:
// - MERGE_ACCEPT_STALE_VERSIONS=true
func MergeAcceptsStaleVersions() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MERGE_ACCEPT_STALE_VERSIONS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ImportAlertThreshold is the duration above which a completed import is
// logged for performance monitoring.
//
// Set via env:
// - IMPORT_ALERT_THRESHOLD_MS (default 2000)
func ImportAlertThreshold() time.Duration {
	return time.Duration(IntFromEnv("IMPORT_ALERT_THRESHOLD_MS", 2000)) * time.Millisecond
}

// Per-operation transaction budgets. Imports write whole item/barcode sets
// and get the longest budget; plain status transitions the shortest.
//
// Set via env:
// - IMPORT_TIMEOUT_SECONDS (default 30)
// - UPDATE_TIMEOUT_SECONDS (default 15)
// - STATUS_TIMEOUT_SECONDS (default 5)
func ImportTimeout() time.Duration {
	return time.Duration(IntFromEnv("IMPORT_TIMEOUT_SECONDS", 30)) * time.Second
}

func UpdateTimeout() time.Duration {
	return time.Duration(IntFromEnv("UPDATE_TIMEOUT_SECONDS", 15)) * time.Second
}

func StatusTimeout() time.Duration {
	return time.Duration(IntFromEnv("STATUS_TIMEOUT_SECONDS", 5)) * time.Second
}
