package coordinator

import (
	"context"
	"log"
	"sync"

	"github.com/Harshcreator/live-attendance-system/internal/session"
	"github.com/Harshcreator/live-attendance-system/pkg/interfaces"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// Error messages sent back to issuers. These are part of the client
// protocol, so they live in one place.
const (
	msgNotATeacher     = "Only teachers can start sessions"
	msgNotAStudent     = "Only students can mark attendance"
	msgAlreadyActive   = "A session is already active"
	msgNoSession       = "No active session"
	msgNotOwner        = "You are not the teacher of this class"
	msgNotEnrolled     = "You are not enrolled in this class"
	msgNotSessionOwner = "Only the session teacher can end it"
	msgMissingClassID  = "A class id is required"
	msgAuthCheckFailed = "Unable to verify authorization"
	msgPersistFailed   = "Failed to record attendance, please try again"
	msgUnrecognized    = "Invalid message format"
)

// Coordinator is the state machine between Idle and InSession. Every
// inbound intent is validated against the issuer's identity, current
// session state and the authorization oracle, then applied and fanned
// out through the registry.
//
// Mutating intents (start, mark, end) are serialized by a single
// mutex, so no two start_session calls can both win and end-session
// persistence completes before any later start proceeds. get_status
// only reads and stays responsive while a teardown persists.
type Coordinator struct {
	mu     sync.Mutex
	state  *session.State
	store  interfaces.AttendanceStore
	sender interfaces.Broadcaster
}

// New creates a Coordinator over the given session state, store and
// fan-out primitive.
func New(state *session.State, store interfaces.AttendanceStore, sender interfaces.Broadcaster) *Coordinator {
	return &Coordinator{
		state:  state,
		store:  store,
		sender: sender,
	}
}

// HandleIntent processes one inbound intent issued by the connection
// identified by handle. Failures are reported to the issuer only;
// they never mutate state and never close the connection.
func (c *Coordinator) HandleIntent(ctx context.Context, handle string, issuer types.Identity, intent types.Intent) {
	switch intent.Type {
	case types.IntentStartSession:
		c.handleStartSession(ctx, handle, issuer, intent.ClassID)
	case types.IntentMarkPresent:
		c.handleMarkPresent(ctx, handle, issuer)
	case types.IntentEndSession:
		c.handleEndSession(ctx, handle, issuer)
	case types.IntentGetStatus:
		c.sender.Unicast(handle, c.StatusEvent())
	default:
		c.sender.Unicast(handle, types.NewErrorEvent(msgUnrecognized))
	}
}

// StatusEvent reports current session state, for get_status replies
// and the snapshot pushed to joining connections.
func (c *Coordinator) StatusEvent() types.SessionStatusEvent {
	active, classID, presentCount := c.state.Status()
	if !active {
		return types.NewIdleStatusEvent()
	}
	return types.NewActiveStatusEvent(classID, presentCount)
}

func (c *Coordinator) handleStartSession(ctx context.Context, handle string, issuer types.Identity, classID string) {
	if issuer.Role != types.RoleTeacher {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNotATeacher))
		return
	}
	if !types.IsValidID(classID) {
		c.sender.Unicast(handle, types.NewErrorEvent(msgMissingClassID))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, _, _, active := c.state.Snapshot(); active {
		c.sender.Unicast(handle, types.NewErrorEvent(msgAlreadyActive))
		return
	}

	// Ownership is re-verified on every start rather than cached:
	// the store is the source of truth and rosters can change
	// between connect time and intent time.
	owns, err := c.store.IsTeacherOwner(ctx, classID, issuer.UserID)
	if err != nil {
		log.Printf("Ownership check failed: class=%s teacher=%s: %v", classID, issuer.UserID, err)
		c.sender.Unicast(handle, types.NewErrorEvent(msgAuthCheckFailed))
		return
	}
	if !owns {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNotOwner))
		return
	}

	if _, err := c.state.Begin(classID, issuer.UserID); err != nil {
		c.sender.Unicast(handle, types.NewErrorEvent(msgAlreadyActive))
		return
	}

	log.Printf("Session started: class=%s teacher=%s", classID, issuer.UserID)
	c.sender.Broadcast(types.NewSessionStartedEvent(classID, issuer.UserID), "")
}

func (c *Coordinator) handleMarkPresent(ctx context.Context, handle string, issuer types.Identity) {
	if issuer.Role != types.RoleStudent {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNotAStudent))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	classID, _, _, active := c.state.Snapshot()
	if !active {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNoSession))
		return
	}

	enrolled, err := c.store.IsStudentEnrolled(ctx, classID, issuer.UserID)
	if err != nil {
		log.Printf("Enrollment check failed: class=%s student=%s: %v", classID, issuer.UserID, err)
		c.sender.Unicast(handle, types.NewErrorEvent(msgAuthCheckFailed))
		return
	}
	if !enrolled {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNotEnrolled))
		return
	}

	newlyMarked, err := c.state.MarkPresent(issuer.UserID)
	if err != nil {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNoSession))
		return
	}
	if !newlyMarked {
		log.Printf("Student already marked present: class=%s student=%s", classID, issuer.UserID)
	}

	// Confirm to the student, announce to everyone else. Repeat marks
	// re-confirm but leave the present-set unchanged.
	c.sender.Unicast(handle, types.NewAttendanceConfirmedEvent(classID))
	c.sender.Broadcast(types.NewStudentMarkedEvent(issuer.UserID, issuer.Name), handle)
}

func (c *Coordinator) handleEndSession(ctx context.Context, handle string, issuer types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	classID, teacherID, studentIDs, active := c.state.Snapshot()
	if !active {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNoSession))
		return
	}
	if issuer.UserID != teacherID {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNotSessionOwner))
		return
	}

	// Persist every present student before the state flips to Idle,
	// so a client that sees session_ended can rely on the records
	// being durable. On failure the session is deliberately left in
	// place for the teacher to retry; the upsert makes retries safe.
	for _, studentID := range studentIDs {
		if _, err := c.store.RecordAttendance(ctx, classID, studentID, types.StatusPresent); err != nil {
			log.Printf("Attendance persistence failed: class=%s student=%s: %v", classID, studentID, err)
			c.sender.Unicast(handle, types.NewErrorEvent(msgPersistFailed))
			return
		}
	}

	if _, _, err := c.state.End(); err != nil {
		c.sender.Unicast(handle, types.NewErrorEvent(msgNoSession))
		return
	}

	log.Printf("Session ended: class=%s teacher=%s attendance=%d", classID, teacherID, len(studentIDs))
	c.sender.Broadcast(types.NewSessionEndedEvent(classID, len(studentIDs)), "")
}
