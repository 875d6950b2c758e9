package interfaces

import (
	"context"

	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// AttendanceStore is the persistence collaborator consumed by the live
// session core. It doubles as the authorization oracle: ownership and
// enrollment are re-checked here on every intent rather than cached,
// because the store is the single source of truth for both.
type AttendanceStore interface {
	// IsTeacherOwner reports whether teacherID owns classID.
	IsTeacherOwner(ctx context.Context, classID, teacherID string) (bool, error)

	// IsStudentEnrolled reports whether studentID is on classID's roster.
	IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error)

	// RecordAttendance upserts the attendance record for a
	// class+student pair. At most one record exists per pair; the
	// latest status wins.
	RecordAttendance(ctx context.Context, classID, studentID, status string) (*types.AttendanceRecord, error)
}

// TokenVerifier validates a bearer credential against the shared
// signing secret and decodes the identity it carries.
type TokenVerifier interface {
	Verify(token string) (*types.Identity, error)
}

// Broadcaster is the fan-out primitive exposed by the connection
// registry. Delivery is best-effort: a failed send to one connection
// never blocks or fails delivery to others, and no return value
// carries application meaning.
type Broadcaster interface {
	// Broadcast delivers event to every registered connection whose
	// transport is open, skipping excludeHandle if non-empty.
	Broadcast(event interface{}, excludeHandle string)

	// Unicast delivers event to the single connection identified by
	// handle, if it is still registered.
	Unicast(handle string, event interface{})
}
