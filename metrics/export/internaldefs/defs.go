package internaldefs

import (
	utsavAuth "github.com/sanghutsav/utsavAuth"
)

// CounterDef names one Service counter for exporters.
type CounterDef struct {
	ID   utsavAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one Service histogram for exporters.
type HistogramDef struct {
	ID   utsavAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: utsavAuth.MetricLoginSuccess, Name: "utsav_login_success_total", Help: "Logins accepted and stored."},
	{ID: utsavAuth.MetricLoginRejected, Name: "utsav_login_rejected_total", Help: "Logins rejected by the backend or for empty credentials."},
	{ID: utsavAuth.MetricLoginTransportError, Name: "utsav_login_transport_error_total", Help: "Logins with no usable backend response."},
	{ID: utsavAuth.MetricLoginStorageError, Name: "utsav_login_storage_error_total", Help: "Accepted logins that could not be stored."},
	{ID: utsavAuth.MetricLogout, Name: "utsav_logout_total", Help: "Logout operations."},
	{ID: utsavAuth.MetricLogoutClearFailure, Name: "utsav_logout_clear_failure_total", Help: "Logouts whose storage cleanup failed."},
	{ID: utsavAuth.MetricAuthCheck, Name: "utsav_auth_check_total", Help: "Authoritative authentication checks."},
	{ID: utsavAuth.MetricAuthCheckDenied, Name: "utsav_auth_check_denied_total", Help: "Authentication checks that found no session."},
	{ID: utsavAuth.MetricExpiredTokenRejected, Name: "utsav_expired_token_rejected_total", Help: "Stored tokens rejected because their exp passed."},
	{ID: utsavAuth.MetricSessionCorrupt, Name: "utsav_session_corrupt_total", Help: "Stored session values that could not be parsed."},
	{ID: utsavAuth.MetricRestoreSuccess, Name: "utsav_restore_success_total", Help: "Sessions the backend still accepted."},
	{ID: utsavAuth.MetricRestoreRejected, Name: "utsav_restore_rejected_total", Help: "Sessions the backend rejected on restore."},
	{ID: utsavAuth.MetricRestoreTransportError, Name: "utsav_restore_transport_error_total", Help: "Restores that could not reach the backend."},
	{ID: utsavAuth.MetricRegistrationSuccess, Name: "utsav_registration_success_total", Help: "Accepted account registrations."},
	{ID: utsavAuth.MetricRegistrationFailure, Name: "utsav_registration_failure_total", Help: "Failed account registrations."},
	{ID: utsavAuth.MetricPersonalInfoSaved, Name: "utsav_personal_info_saved_total", Help: "Personal information updates accepted."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: utsavAuth.MetricBackendLatency, Name: "utsav_backend_latency_seconds", Help: "Registration API call latency."},
}

// AuditDroppedName is the counter for audit events that never reached the sink.
const (
	AuditDroppedName = "utsav_audit_dropped_total"
	AuditDroppedHelp = "Audit events that never reached the sink."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight snapshot buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
