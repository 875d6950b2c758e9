package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/pkg/interfaces"
	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// Config holds store settings.
type Config struct {
	Path            string        `json:"path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// DefaultConfig returns settings suitable for classroom scale.
func DefaultConfig() *Config {
	return &Config{
		Path:            "./data/attendance.db",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("store max connections must be positive")
	}
	if c.ConnMaxLifetime <= 0 {
		return fmt.Errorf("store connection max lifetime must be positive")
	}
	if c.ConnMaxIdleTime <= 0 {
		return fmt.Errorf("store connection max idle time must be positive")
	}
	return nil
}

// Store is the SQLite-backed persistence collaborator: user accounts,
// class rosters and attendance records. Reads run concurrently; all
// writes funnel through a single writer goroutine because SQLite
// allows only one writer at a time.
type Store struct {
	db       *sql.DB
	config   *Config
	writeCh  chan writeOperation
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Compile-time check that Store satisfies the collaborator contract.
var _ interfaces.AttendanceStore = (*Store)(nil)

// NewStore opens the database, applies pragmas and migrations, and
// starts the writer goroutine.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", config.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite pragmas: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{
		db:       db,
		config:   config,
		writeCh:  make(chan writeOperation, 100),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes all write operations in a single goroutine,
// retrying each failed write exactly once.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("Store write failed, retrying: %v", err)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Store write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-s.shutdown:
		return fmt.Errorf("store is shutting down")
	}
}

// CreateUser inserts a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, name, email, role, password string) (*types.User, error) {
	if !types.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.executeWrite(func(db *sql.DB) error {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count); err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return interfaces.ErrEmailTaken
		}

		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, email, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.Role, user.PasswordHash, user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser retrieves an account by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*types.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM users WHERE id = ?`, userID))
}

// GetUserByEmail retrieves an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (s *Store) scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Authenticate checks email+password and returns the matching account.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if err == interfaces.ErrUserNotFound {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrAuthenticationFailed
	}
	return user, nil
}

// CreateClass inserts a new class owned by teacherID.
func (s *Store) CreateClass(ctx context.Context, name, teacherID string) (*types.Class, error) {
	teacher, err := s.GetUser(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if teacher.Role != types.RoleTeacher {
		return nil, ErrNotATeacher
	}

	class := &types.Class{
		ID:        uuid.New().String(),
		Name:      name,
		TeacherID: teacherID,
		CreatedAt: time.Now().UTC(),
	}

	err = s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO classes (id, name, teacher_id, created_at) VALUES (?, ?, ?, ?)`,
			class.ID, class.Name, class.TeacherID, class.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert class: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return class, nil
}

// GetClass retrieves a class by id.
func (s *Store) GetClass(ctx context.Context, classID string) (*types.Class, error) {
	var class types.Class
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, teacher_id, created_at FROM classes WHERE id = ?`, classID,
	).Scan(&class.ID, &class.Name, &class.TeacherID, &class.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	return &class, nil
}

// EnrollStudent adds studentID to classID's roster. Idempotent.
func (s *Store) EnrollStudent(ctx context.Context, classID, studentID string) error {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return err
	}
	student, err := s.GetUser(ctx, studentID)
	if err != nil {
		return err
	}
	if student.Role != types.RoleStudent {
		return ErrNotAStudent
	}

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO enrollments (class_id, student_id, created_at) VALUES (?, ?, ?)`,
			classID, studentID, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert enrollment: %w", err)
		}
		return nil
	})
}

// IsTeacherOwner reports whether teacherID owns classID.
func (s *Store) IsTeacherOwner(ctx context.Context, classID, teacherID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM classes WHERE id = ? AND teacher_id = ?`, classID, teacherID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query class ownership: %w", err)
	}
	return count > 0, nil
}

// IsStudentEnrolled reports whether studentID is on classID's roster.
func (s *Store) IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE class_id = ? AND student_id = ?`, classID, studentID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query enrollment: %w", err)
	}
	return count > 0, nil
}

// RecordAttendance upserts the record for a class+student pair. The
// latest status wins; created_at is preserved across updates.
func (s *Store) RecordAttendance(ctx context.Context, classID, studentID, status string) (*types.AttendanceRecord, error) {
	if !types.IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	now := time.Now().UTC()
	err := s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO attendance (id, class_id, student_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (class_id, student_id)
			DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
			uuid.New().String(), classID, studentID, status, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var record types.AttendanceRecord
	err = s.db.QueryRowContext(ctx, `
		SELECT id, class_id, student_id, status, created_at, updated_at
		FROM attendance WHERE class_id = ? AND student_id = ?`,
		classID, studentID,
	).Scan(&record.ID, &record.ClassID, &record.StudentID, &record.Status, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read back attendance record: %w", err)
	}
	return &record, nil
}

// ListAttendanceByClass returns all records for a class, newest first.
func (s *Store) ListAttendanceByClass(ctx context.Context, classID string) ([]*types.AttendanceRecord, error) {
	return s.listAttendance(ctx, `
		SELECT id, class_id, student_id, status, created_at, updated_at
		FROM attendance WHERE class_id = ? ORDER BY updated_at DESC`, classID)
}

// ListAttendanceByStudent returns all records for a student, newest first.
func (s *Store) ListAttendanceByStudent(ctx context.Context, studentID string) ([]*types.AttendanceRecord, error) {
	return s.listAttendance(ctx, `
		SELECT id, class_id, student_id, status, created_at, updated_at
		FROM attendance WHERE student_id = ? ORDER BY updated_at DESC`, studentID)
}

func (s *Store) listAttendance(ctx context.Context, query string, arg string) ([]*types.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.AttendanceRecord
	for rows.Next() {
		var record types.AttendanceRecord
		err := rows.Scan(&record.ID, &record.ClassID, &record.StudentID, &record.Status, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		records = append(records, &record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return records, nil
}

// HealthCheck validates database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users LIMIT 1").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close shuts down the writer goroutine and the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}
