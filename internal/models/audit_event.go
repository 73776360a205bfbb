package models

import "time"

// Audit categories.
const (
	AuditCategoryAuth     = "auth"
	AuditCategoryAdmin    = "admin"
	AuditCategoryUser     = "user"
	AuditCategorySecurity = "security"
	AuditCategoryGeneral  = "general"
)

// Security event types with a fixed severity.
const (
	EventAuthFailedLogin    = "AUTH_FAILED_LOGIN"
	EventAuthAccountLocked  = "AUTH_ACCOUNT_LOCKED"
	EventAuthMultipleFailed = "AUTH_MULTIPLE_FAILED"
	EventDataAccessDenied   = "DATA_ACCESS_DENIED"
	EventAuthTokenRejected  = "AUTH_TOKEN_REJECTED"
)

// User action event types.
const (
	EventUserSignup        = "user_signup"
	EventUserLogin         = "user_login"
	EventUserLogout        = "user_logout"
	EventBookAppointment   = "book_appointment"
	EventUpdateAppointment = "update_appointment"
	EventCancelAppointment = "cancel_appointment"
	EventDeleteAppointment = "delete_appointment"
	EventPasswordChanged   = "password_changed"
	EventRoleChange        = "role_change"
	EventForcedLogout      = "forced_logout"
	EventUserErased        = "user_erased"
)

// Audit levels.
const (
	AuditLevelInfo  = "info"
	AuditLevelWarn  = "warn"
	AuditLevelError = "error"
)

// AuditLevelFor derives the level for an event type from the fixed map.
func AuditLevelFor(eventType string) string {
	switch eventType {
	case EventAuthFailedLogin, EventAuthAccountLocked, EventDataAccessDenied:
		return AuditLevelError
	case EventAuthMultipleFailed:
		return AuditLevelWarn
	}
	return AuditLevelInfo
}

// CriticalAuditEvent reports whether the event type is mirrored to the
// out-of-band alert channel.
func CriticalAuditEvent(eventType string) bool {
	return AuditLevelFor(eventType) == AuditLevelError
}

// AuditEvent is a structured, append-only record emitted on security- or
// action-relevant transitions.
type AuditEvent struct {
	Timestamp time.Time
	Level     string
	Category  string
	EventType string
	Message   string
	UserID    string
	IP        string
	UserAgent string
	RequestID string
	Metadata  map[string]any
}
