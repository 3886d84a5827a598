package coordinator

import (
	"time"
)

type AlertLevel string

const (
	AlertLow  AlertLevel = "low"
	AlertHigh AlertLevel = "high"
)

type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertDismissed AlertStatus = "dismissed"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Alert occupies the single active slot. IDs are strictly increasing so a
// dismiss always targets exactly one creation.
type Alert struct {
	ID          int64       `json:"id"`
	Level       AlertLevel  `json:"level"`
	Type        string      `json:"type"`
	Message     string      `json:"message"`
	Timestamp   time.Time   `json:"timestamp"`
	CameraID    string      `json:"camera_id"`
	CameraName  string      `json:"camera_name,omitempty"`
	ChildID     *int64      `json:"child_id,omitempty"`
	ChildName   string      `json:"child_name,omitempty"`
	Status      AlertStatus `json:"status"`
	DismissedBy string      `json:"dismissed_by,omitempty"`
	DismissedAt *time.Time  `json:"dismissed_at,omitempty"`
}

type LinkState string

const (
	LinkOnline  LinkState = "online"
	LinkOffline LinkState = "offline"
)

type CameraStatus struct {
	Total  int `json:"total"`
	Online int `json:"online"`
}

// OverrideWindow is the time-bounded suppression of high-severity escalation.
type OverrideWindow struct {
	Active           bool       `json:"active"`
	Reason           string     `json:"reason,omitempty"`
	RemainingMinutes int        `json:"remaining_minutes,omitempty"`
	ActivatedBy      string     `json:"activated_by,omitempty"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
}

type SystemStatus struct {
	NAS          LinkState      `json:"nas"`
	Cameras      CameraStatus   `json:"cameras"`
	OverrideMode OverrideWindow `json:"override_mode"`
}

// StatusPatch is a shallow merge into SystemStatus. Nil fields preserve the
// current value; OverrideMode is never patched here, it has dedicated
// operations with validation.
type StatusPatch struct {
	NAS     *LinkState    `json:"nas,omitempty"`
	Cameras *CameraStatus `json:"cameras,omitempty"`
}

type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

const DefaultToastDurationMS = 4000

type Toast struct {
	ID         string    `json:"id"`
	Type       ToastType `json:"type"`
	Message    string    `json:"message"`
	DurationMS int       `json:"duration_ms"`
}

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// Snapshot is the read-only view pushed to subscribers. It never shares
// pointers with coordinator internals.
type Snapshot struct {
	User            *User        `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	SystemStatus    SystemStatus `json:"system_status"`
	ActiveAlert     *Alert       `json:"active_alert"`
	Toasts          []Toast      `json:"toasts"`
}
