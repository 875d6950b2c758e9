package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/internal/coordinator"
	"github.com/Harshcreator/live-attendance-system/internal/session"
	"github.com/Harshcreator/live-attendance-system/internal/store"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// TestAttendanceScenario runs one full class session over the real
// stack: SQLite-backed store, live coordinator, token verification and
// WebSocket fan-out.
func TestAttendanceScenario(t *testing.T) {
	config := store.DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "scenario.db")
	st, err := store.NewStore(config)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	teacher, err := st.CreateUser(ctx, "Ms. Lovelace", "ada@example.com", types.RoleTeacher, "pw")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	class, err := st.CreateClass(ctx, "Computing 101", teacher.ID)
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	students := make([]*types.User, 2)
	for i := range students {
		student, err := st.CreateUser(ctx, fmt.Sprintf("Student %d", i+1), fmt.Sprintf("s%d@example.com", i+1), types.RoleStudent, "pw")
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if err := st.EnrollStudent(ctx, class.ID, student.ID); err != nil {
			t.Fatalf("EnrollStudent failed: %v", err)
		}
		students[i] = student
	}

	verifier := auth.NewVerifier("scenario-secret")
	registry := NewRegistry()
	coord := coordinator.New(session.NewState(), st, registry)
	handler := NewHandler(registry, verifier, coord)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	dial := func(user *types.User) *websocket.Conn {
		t.Helper()
		token, err := verifier.Mint(types.Identity{UserID: user.ID, Role: user.Role, Name: user.Name}, 0)
		if err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "?token="+token), nil)
		if err != nil {
			t.Fatalf("Dial failed for %s: %v", user.Name, err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	send := func(conn *websocket.Conn, frame string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}

	// Teacher connects before any session exists.
	teacherConn := dial(teacher)
	requireEventType(t, teacherConn, types.EventConnected)
	status := requireEventType(t, teacherConn, types.EventSessionStatus)
	if status["active"] != false {
		t.Fatalf("Expected idle snapshot, got %v", status)
	}

	// Teacher starts the session; the start is announced back to them.
	send(teacherConn, fmt.Sprintf(`{"type":"start_session","classId":"%s"}`, class.ID))
	started := requireEventType(t, teacherConn, types.EventSessionStarted)
	if started["classId"] != class.ID || started["teacherId"] != teacher.ID {
		t.Fatalf("Unexpected session_started: %v", started)
	}

	// First student joins mid-session and gets the live snapshot.
	firstConn := dial(students[0])
	requireEventType(t, firstConn, types.EventConnected)
	snapshot := requireEventType(t, firstConn, types.EventSessionStatus)
	if snapshot["active"] != true || snapshot["classId"] != class.ID {
		t.Fatalf("Expected active snapshot for late joiner, got %v", snapshot)
	}
	if snapshot["presentCount"] != float64(0) {
		t.Fatalf("Expected presentCount 0, got %v", snapshot["presentCount"])
	}

	// The student marks present: they get a confirmation, the teacher
	// gets the announcement, and the student does not hear their own
	// mark echoed back.
	send(firstConn, `{"type":"mark_present"}`)
	confirmed := requireEventType(t, firstConn, types.EventAttendanceConfirmed)
	if confirmed["classId"] != class.ID {
		t.Fatalf("Unexpected attendance_confirmed: %v", confirmed)
	}
	marked := requireEventType(t, teacherConn, types.EventStudentMarked)
	if marked["studentId"] != students[0].ID || marked["studentName"] != students[0].Name {
		t.Fatalf("Unexpected student_marked: %v", marked)
	}

	// Second student joins and sees the updated count.
	secondConn := dial(students[1])
	requireEventType(t, secondConn, types.EventConnected)
	snapshot = requireEventType(t, secondConn, types.EventSessionStatus)
	if snapshot["presentCount"] != float64(1) {
		t.Fatalf("Expected presentCount 1, got %v", snapshot)
	}

	// A second mark from the same student re-confirms without growing
	// the present-set.
	send(firstConn, `{"type":"mark_present"}`)
	requireEventType(t, firstConn, types.EventAttendanceConfirmed)
	requireEventType(t, teacherConn, types.EventStudentMarked)
	requireEventType(t, secondConn, types.EventStudentMarked)

	send(secondConn, `{"type":"get_status"}`)
	status = requireEventType(t, secondConn, types.EventSessionStatus)
	if status["presentCount"] != float64(1) {
		t.Fatalf("Repeat mark must not grow the count, got %v", status)
	}

	// Teacher ends the session; everyone hears it, including both
	// students, and the count reflects distinct attendees.
	send(teacherConn, `{"type":"end_session"}`)
	for _, conn := range []*websocket.Conn{teacherConn, firstConn, secondConn} {
		ended := requireEventType(t, conn, types.EventSessionEnded)
		if ended["classId"] != class.ID || ended["attendanceCount"] != float64(1) {
			t.Fatalf("Unexpected session_ended: %v", ended)
		}
	}

	// Attendance survived into the store: one present record for the
	// student who marked, none for the one who only watched.
	records, err := st.ListAttendanceByClass(ctx, class.ID)
	if err != nil {
		t.Fatalf("ListAttendanceByClass failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 attendance record, got %d", len(records))
	}
	if records[0].StudentID != students[0].ID || records[0].Status != types.StatusPresent {
		t.Errorf("Unexpected record: %+v", records[0])
	}
}
