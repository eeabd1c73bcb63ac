// internal/store/sqlite/store_test.go
package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/models"
	"github.com/shrimpsizemoose/attendo/internal/store"
	"github.com/shrimpsizemoose/attendo/migrations"
)

// setupTestDB creates an in-memory SQLite database with the embedded schema
func setupTestDB(t *testing.T) *SQLiteStore {
	s, err := NewSQLiteStore(":memory:", migrations.FS)
	require.NoError(t, err, "Failed to create store")

	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})

	_, err = s.DB.Exec(`
		INSERT INTO "session" (label) VALUES ('Juin 2024'), ('Septembre 2024');
		INSERT INTO ue (ue) VALUES ('WEB1'), ('DEV2');
		INSERT INTO session_compo ("session", ue) VALUES (1, 'WEB1');
		INSERT INTO "event" (label, session_compo) VALUES ('Écrit', 1);
		INSERT INTO room (label, capacity) VALUES ('101', 3);
		INSERT INTO examination_room ("event", room) VALUES (1, '101');
		INSERT INTO student (student_id, firstname, lastname) VALUES
			(1, 'Ada', 'Lovelace'), (2, 'Alan', 'Turing'), (3, 'Grace', 'Hopper'),
			(4, 'Edsger', 'Dijkstra'), (5, 'Barbara', 'Liskov');
	`)
	require.NoError(t, err, "Failed to insert test data")

	return s
}

func TestTranslateToSQLite(t *testing.T) {
	got := translateToSQLite(`CREATE TABLE x (id BIGSERIAL PRIMARY KEY, n BIGINT NOT NULL, p JSONB)`)
	assert.Equal(t, `CREATE TABLE x (id INTEGER PRIMARY KEY AUTOINCREMENT, n INTEGER NOT NULL, p TEXT)`, got)
}

func TestPostgresOnlyMigrationsAreSkipped(t *testing.T) {
	assert.True(t, postgresOnly("002_insert_within_limit.pg.sql"))
	assert.False(t, postgresOnly("001_init.sql"))
}

func TestSelect(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	t.Run("ordered rows", func(t *testing.T) {
		var sessions []models.Session
		err := s.Select(ctx, &sessions, gateway.From(models.TableSession, "id", "label").Order("id"))
		require.NoError(t, err)
		assert.Equal(t, []models.Session{{ID: 1, Label: "Juin 2024"}, {ID: 2, Label: "Septembre 2024"}}, sessions)
	})

	t.Run("in filter", func(t *testing.T) {
		var students []models.Student
		q := gateway.From(models.TableStudent).Where(gateway.In("student_id", []int64{2, 4})).Order("student_id")
		require.NoError(t, s.Select(ctx, &students, q))
		require.Len(t, students, 2)
		assert.Equal(t, "Turing", students[0].Lastname)
		assert.Equal(t, "Dijkstra", students[1].Lastname)
	})

	t.Run("empty in filter matches nothing", func(t *testing.T) {
		var students []models.Student
		q := gateway.From(models.TableStudent).Where(gateway.In("student_id", []int64{}))
		require.NoError(t, s.Select(ctx, &students, q))
		assert.Empty(t, students)
	})

	t.Run("nil equality is IS NULL", func(t *testing.T) {
		n, err := s.Count(ctx, models.TableExaminationRoom, gateway.Eq("supervisor", nil))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("invalid identifier", func(t *testing.T) {
		var rows []models.Session
		err := s.Select(ctx, &rows, gateway.From(`session"; DROP TABLE student; --`))
		assert.Error(t, err)
	})
}

func TestSelectOne(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var room models.Room
	require.NoError(t, s.SelectOne(ctx, &room, gateway.From(models.TableRoom).Where(gateway.Eq("label", "101"))))
	assert.Equal(t, models.Room{Label: "101", Capacity: 3}, room)

	err := s.SelectOne(ctx, &room, gateway.From(models.TableRoom).Where(gateway.Eq("label", "999")))
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestWrites(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	t.Run("insert returning", func(t *testing.T) {
		var created models.Session
		err := s.Insert(ctx, models.TableSession, gateway.Row{"label": "Janvier 2025"}, &created)
		require.NoError(t, err)
		assert.Equal(t, int64(3), created.ID)
		assert.Equal(t, "Janvier 2025", created.Label)
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		err := s.Insert(ctx, models.TableSessionCompo, gateway.Row{"session": 1, "ue": "WEB1"}, nil)
		assert.ErrorIs(t, err, gateway.ErrConflict)
	})

	t.Run("foreign key violation is a conflict", func(t *testing.T) {
		err := s.Insert(ctx, models.TableSessionCompo, gateway.Row{"session": 1, "ue": "NOPE"}, nil)
		assert.ErrorIs(t, err, gateway.ErrConflict)
	})

	t.Run("update", func(t *testing.T) {
		_, err := s.DB.Exec(`INSERT INTO teacher (acro) VALUES ('ABS')`)
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, models.TableExaminationRoom, gateway.Row{"supervisor": "ABS"}, gateway.Eq("id", 1)))

		var er models.ExaminationRoom
		require.NoError(t, s.SelectOne(ctx, &er, gateway.From(models.TableExaminationRoom).Where(gateway.Eq("id", 1))))
		require.NotNil(t, er.Supervisor)
		assert.Equal(t, "ABS", *er.Supervisor)
	})

	t.Run("update of a missing row is not found", func(t *testing.T) {
		err := s.Update(ctx, models.TableExaminationRoom, gateway.Row{"supervisor": "ABS"}, gateway.Eq("id", 404))
		assert.ErrorIs(t, err, gateway.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, models.TableExamination, gateway.Row{"student": 1, "examination_room": 1}, nil))
		require.NoError(t, s.Delete(ctx, models.TableExamination, gateway.Eq("student", 1), gateway.Eq("examination_room", 1)))

		n, err := s.Count(ctx, models.TableExamination)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unfiltered update and delete are refused", func(t *testing.T) {
		assert.Error(t, s.Update(ctx, models.TableRoom, gateway.Row{"capacity": 0}))
		assert.Error(t, s.Delete(ctx, models.TableStudent))

		n, err := s.Count(ctx, models.TableStudent)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})
}

func TestInsertWithinLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	scope := gateway.Eq("examination_room", 1)

	for id := 1; id <= 3; id++ {
		row := gateway.Row{"student": id, "examination_room": 1}
		require.NoError(t, s.InsertWithinLimit(ctx, models.TableExamination, row, 3, scope))
	}

	err := s.InsertWithinLimit(ctx, models.TableExamination, gateway.Row{"student": 4, "examination_room": 1}, 3, scope)
	assert.ErrorIs(t, err, gateway.ErrLimitReached)
	assert.ErrorIs(t, err, gateway.ErrConflict)

	n, err := s.Count(ctx, models.TableExamination, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInsertWithinLimitScopeValues(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	row := gateway.Row{"student": 1, "examination_room": 1}

	err := s.InsertWithinLimit(ctx, models.TableExamination, row, 3, gateway.Eq("examination_room", 1.0))
	assert.ErrorIs(t, err, gateway.ErrUnknown)

	require.NoError(t, s.InsertWithinLimit(ctx, models.TableExamination, row, 3, gateway.Eq("examination_room", int64(1))))

	key, err := store.LockKey(models.TableExamination, []gateway.Filter{gateway.Eq("examination_room", int64(7))})
	require.NoError(t, err)
	assert.Equal(t, "examination:examination_room=7", key)
}

func TestInsertWithinLimitConcurrent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	scope := gateway.Eq("examination_room", 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for id := 1; id <= 5; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			row := gateway.Row{"student": id, "examination_room": 1}
			err := s.InsertWithinLimit(ctx, models.TableExamination, row, 2, scope)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if assert.ErrorIs(t, err, gateway.ErrLimitReached) {
				rejected++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 3, rejected)

	n, err := s.Count(ctx, models.TableExamination, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
