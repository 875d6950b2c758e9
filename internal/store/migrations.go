package store

import (
	"database/sql"
	"fmt"
)

// migration is one schema change, applied in version order inside a
// transaction and recorded in schema_migrations.
type migration struct {
	Version     string
	Description string
	SQL         string
}

// Migrations are embedded rather than loaded from disk so the binary
// is self-contained.
var migrations = []migration{
	{
		Version:     "001",
		Description: "initial schema",
		SQL: `
			CREATE TABLE users (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				email         TEXT NOT NULL UNIQUE,
				role          TEXT NOT NULL CHECK (role IN ('teacher', 'student')),
				password_hash TEXT NOT NULL,
				created_at    DATETIME NOT NULL
			);

			CREATE TABLE classes (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				teacher_id TEXT NOT NULL REFERENCES users(id),
				created_at DATETIME NOT NULL
			);

			CREATE TABLE enrollments (
				class_id   TEXT NOT NULL REFERENCES classes(id),
				student_id TEXT NOT NULL REFERENCES users(id),
				created_at DATETIME NOT NULL,
				PRIMARY KEY (class_id, student_id)
			);

			CREATE TABLE attendance (
				id         TEXT PRIMARY KEY,
				class_id   TEXT NOT NULL REFERENCES classes(id),
				student_id TEXT NOT NULL REFERENCES users(id),
				status     TEXT NOT NULL CHECK (status IN ('present', 'absent')),
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (class_id, student_id)
			);

			CREATE INDEX idx_classes_teacher ON classes(teacher_id);
			CREATE INDEX idx_enrollments_student ON enrollments(student_id);
			CREATE INDEX idx_attendance_class ON attendance(class_id);
			CREATE INDEX idx_attendance_student ON attendance(student_id);
		`,
	},
}

// applyMigrations brings the schema up to date, skipping versions that
// are already recorded as applied.
func applyMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w", m.Version, m.Description, err)
		}
	}

	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
