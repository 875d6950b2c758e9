package types

import (
	"encoding/json"
	"time"
)

// Roles carried by authenticated identities.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Attendance record statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Inbound intent types accepted over the WebSocket protocol.
const (
	IntentStartSession = "start_session"
	IntentEndSession   = "end_session"
	IntentMarkPresent  = "mark_present"
	IntentGetStatus    = "get_status"

	// IntentUnrecognized is the decode result for frames that are not
	// valid JSON or carry an unknown type. It never mutates state.
	IntentUnrecognized = "unrecognized"
)

// Identity is the authenticated identity attached to a connection at
// registration time. It is never mutated after creation.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
}

// Intent is one inbound request to change or query session state,
// tagged with its protocol type.
type Intent struct {
	Type    string `json:"type"`
	ClassID string `json:"classId,omitempty"`
}

// DecodeIntent parses a text frame into an Intent. Malformed frames
// and unknown types decode to IntentUnrecognized rather than failing,
// so the caller has a single error path for bad input.
func DecodeIntent(data []byte) Intent {
	var intent Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return Intent{Type: IntentUnrecognized}
	}
	switch intent.Type {
	case IntentStartSession, IntentEndSession, IntentMarkPresent, IntentGetStatus:
		return intent
	default:
		return Intent{Type: IntentUnrecognized}
	}
}

// User is an account row in the persistence layer.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Class is a roster row: one owning teacher plus enrolled students.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeacherID string    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceRecord is one persisted attendance mark. There is at most
// one record per class+student pair; the latest status wins.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	StudentID string    `json:"student_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
