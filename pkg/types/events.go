package types

// Outbound event types emitted over the WebSocket protocol.
const (
	EventConnected           = "connected"
	EventSessionStarted      = "session_started"
	EventSessionEnded        = "session_ended"
	EventStudentMarked       = "student_marked"
	EventAttendanceConfirmed = "attendance_confirmed"
	EventSessionStatus       = "session_status"
	EventError               = "error"
)

// ConnectedEvent confirms a successful connection to its owner.
type ConnectedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// SessionStartedEvent announces a new session to every connection.
type SessionStartedEvent struct {
	Type      string `json:"type"`
	ClassID   string `json:"classId"`
	TeacherID string `json:"teacherId"`
}

// SessionEndedEvent announces the end of the session and how many
// students were recorded present.
type SessionEndedEvent struct {
	Type            string `json:"type"`
	ClassID         string `json:"classId"`
	AttendanceCount int    `json:"attendanceCount"`
}

// StudentMarkedEvent announces one student's presence mark to every
// connection except the student themselves.
type StudentMarkedEvent struct {
	Type        string `json:"type"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
}

// AttendanceConfirmedEvent acknowledges a mark_present to its issuer.
type AttendanceConfirmedEvent struct {
	Type    string `json:"type"`
	ClassID string `json:"classId"`
}

// SessionStatusEvent reflects current session state. ClassID and
// PresentCount are only set while a session is active.
type SessionStatusEvent struct {
	Type         string `json:"type"`
	Active       bool   `json:"active"`
	ClassID      string `json:"classId,omitempty"`
	PresentCount *int   `json:"presentCount,omitempty"`
}

// ErrorEvent reports a recoverable failure to the issuing connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewConnectedEvent(identity Identity) ConnectedEvent {
	return ConnectedEvent{Type: EventConnected, UserID: identity.UserID, Role: identity.Role}
}

func NewSessionStartedEvent(classID, teacherID string) SessionStartedEvent {
	return SessionStartedEvent{Type: EventSessionStarted, ClassID: classID, TeacherID: teacherID}
}

func NewSessionEndedEvent(classID string, attendanceCount int) SessionEndedEvent {
	return SessionEndedEvent{Type: EventSessionEnded, ClassID: classID, AttendanceCount: attendanceCount}
}

func NewStudentMarkedEvent(studentID, studentName string) StudentMarkedEvent {
	return StudentMarkedEvent{Type: EventStudentMarked, StudentID: studentID, StudentName: studentName}
}

func NewAttendanceConfirmedEvent(classID string) AttendanceConfirmedEvent {
	return AttendanceConfirmedEvent{Type: EventAttendanceConfirmed, ClassID: classID}
}

// NewIdleStatusEvent reports that no session is active.
func NewIdleStatusEvent() SessionStatusEvent {
	return SessionStatusEvent{Type: EventSessionStatus, Active: false}
}

// NewActiveStatusEvent reports an in-progress session for classID with
// presentCount students marked so far.
func NewActiveStatusEvent(classID string, presentCount int) SessionStatusEvent {
	return SessionStatusEvent{
		Type:         EventSessionStatus,
		Active:       true,
		ClassID:      classID,
		PresentCount: &presentCount,
	}
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}
