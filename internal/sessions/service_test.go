package sessions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/gateway/gatewaytest"
	"github.com/shrimpsizemoose/attendo/internal/models"
	"github.com/shrimpsizemoose/attendo/internal/store/storetest"
)

func TestAddSessionIfNotExists(t *testing.T) {
	ctx := context.Background()
	existing := []models.Session{{ID: 1, Label: "Midterm"}, {ID: 2, Label: "Juin 2024"}}

	t.Run("rejects case-insensitive duplicate", func(t *testing.T) {
		tables := new(gatewaytest.MockTables)
		svc := NewService(tables)

		res, err := svc.AddSessionIfNotExists(ctx, "midterm", existing)
		require.NoError(t, err)
		assert.False(t, res.Added)
		assert.Equal(t, "This session already exists.", res.Reason)
		tables.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects blank label", func(t *testing.T) {
		tables := new(gatewaytest.MockTables)
		svc := NewService(tables)

		res, err := svc.AddSessionIfNotExists(ctx, "   ", existing)
		require.NoError(t, err)
		assert.False(t, res.Added)
		tables.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inserts new label trimmed", func(t *testing.T) {
		tables := new(gatewaytest.MockTables)
		tables.On("Insert", ctx, models.TableSession, gateway.Row{"label": "Final"}, mock.Anything).Return(nil)
		svc := NewService(tables)

		res, err := svc.AddSessionIfNotExists(ctx, "  Final ", existing)
		require.NoError(t, err)
		assert.True(t, res.Added)
		tables.AssertExpectations(t)
	})

	t.Run("surfaces gateway failure", func(t *testing.T) {
		tables := new(gatewaytest.MockTables)
		gwErr := gateway.NewError("insert", models.TableSession, gateway.ErrNetwork, errors.New("connection refused"))
		tables.On("Insert", ctx, models.TableSession, mock.Anything, mock.Anything).Return(gwErr)
		svc := NewService(tables)

		res, err := svc.AddSessionIfNotExists(ctx, "Final", existing)
		require.Error(t, err)
		assert.False(t, res.Added)
		assert.ErrorIs(t, err, gateway.ErrNetwork)
	})
}

func TestSessionsAgainstStore(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	storetest.Seed(t, s)
	svc := NewService(s)

	t.Run("available UEs are the set difference", func(t *testing.T) {
		storetest.Exec(t, s, `INSERT INTO "session" (id, label) VALUES (2, 'Août 2024')`)
		storetest.Exec(t, s, `INSERT INTO session_compo ("session", ue) VALUES (2, 'DEV2')`)

		available, err := svc.FetchAvailableUes(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []models.UE{{Code: "MAT3"}, {Code: "WEB1"}}, available)
	})

	t.Run("add session returns created row", func(t *testing.T) {
		created, err := svc.AddSession(ctx, "Septembre 2024")
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "Septembre 2024", created.Label)

		sessions, err := svc.FetchSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, created.Label, sessions[len(sessions)-1].Label)
	})

	t.Run("unknown session label is not found", func(t *testing.T) {
		_, err := svc.FetchSessionLabel(ctx, 999)
		assert.ErrorIs(t, err, gateway.ErrNotFound)
	})

	t.Run("session detail", func(t *testing.T) {
		detail, err := svc.LoadSessionDetail(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Juin 2024", detail.Label)
		assert.Equal(t, []models.UE{{Code: "WEB1"}, {Code: "DEV2"}}, detail.UEs)
		assert.Equal(t, []models.UE{{Code: "MAT3"}}, detail.Available)
	})

	t.Run("linking a UE twice is a conflict", func(t *testing.T) {
		res, err := svc.TryAddUeToSession(ctx, 1, "WEB1")
		assert.False(t, res.Added)
		assert.ErrorIs(t, err, gateway.ErrConflict)
	})

	t.Run("empty UE selection is rejected", func(t *testing.T) {
		res, err := svc.TryAddUeToSession(ctx, 1, "")
		require.NoError(t, err)
		assert.False(t, res.Added)
	})

	t.Run("link new UE", func(t *testing.T) {
		res, err := svc.TryAddUeToSession(ctx, 1, "MAT3")
		require.NoError(t, err)
		assert.True(t, res.Added)

		available, err := svc.FetchAvailableUes(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, available)
	})
}
