// Package storetest provides an in-memory gateway for tests.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/attendo/internal/store/sqlite"
	"github.com/shrimpsizemoose/attendo/migrations"
)

// New returns an in-memory SQLite store with the schema applied. It is closed
// when the test ends.
func New(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	s, err := sqlite.NewSQLiteStore(":memory:", migrations.FS)
	require.NoError(t, err, "Failed to create store")

	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}

// Exec runs raw statements against s, failing the test on error.
func Exec(t *testing.T, s *sqlite.SQLiteStore, query string, args ...any) {
	t.Helper()
	_, err := s.DB.Exec(query, args...)
	require.NoError(t, err, "Failed to insert test data")
}

// Seed loads a small exam layout:
//
//	session 1 "Juin 2024" with UEs WEB1 (compo 1) and DEV2 (compo 2)
//	event 1 "Écrit" under compo 1, event 2 "Oral" under compo 2
//	examination_room 1: event 1 in room 101 (capacity 2), supervisor ABS
//	examination_room 2: event 2 in room 202 (capacity 30), no supervisor
//	students 1..3 enrolled in WEB1, student 1 already present in room 1
func Seed(t *testing.T, s *sqlite.SQLiteStore) {
	t.Helper()
	Exec(t, s, `
		INSERT INTO "session" (id, label) VALUES (1, 'Juin 2024');
		INSERT INTO ue (ue) VALUES ('WEB1'), ('DEV2'), ('MAT3');
		INSERT INTO session_compo (id, "session", ue) VALUES (1, 1, 'WEB1'), (2, 1, 'DEV2');
		INSERT INTO "event" (id, label, session_compo) VALUES (1, 'Écrit', 1), (2, 'Oral', 2);
		INSERT INTO room (label, capacity) VALUES ('101', 2), ('202', 30), ('303', 10);
		INSERT INTO teacher (acro) VALUES ('ABS'), ('MCD');
		INSERT INTO examination_room (id, "event", room, supervisor) VALUES (1, 1, '101', 'ABS'), (2, 2, '202', NULL);
		INSERT INTO student (student_id, firstname, lastname) VALUES
			(1, 'Ada', 'Lovelace'),
			(2, 'Alan', 'Turing'),
			(3, 'Grace', 'Hopper');
		INSERT INTO pae (student_id, ue, "group") VALUES (1, 'WEB1', 'A1'), (2, 'WEB1', 'A2'), (3, 'WEB1', 'A1');
		INSERT INTO examination (student, examination_room) VALUES (1, 1);
	`)
}
