package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/gateway/gatewaytest"
)

func TestInstrumentedTables(t *testing.T) {
	ctx := context.Background()
	tables := new(gatewaytest.MockTables)
	notFound := gateway.NewError("select one", "session", gateway.ErrNotFound, errors.New("no rows"))
	tables.On("SelectOne", ctx, mock.Anything, mock.Anything).Return(notFound)
	tables.On("Count", ctx, "examination", mock.Anything).Return(3, nil)

	inst := Instrument(tables)

	err := inst.SelectOne(ctx, new(struct{}), gateway.From("session"))
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	n, err := inst.Count(ctx, "examination", gateway.Eq("examination_room", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, 2, testutil.CollectAndCount(GatewayRequestDuration, "attendo_gateway_request_duration_seconds"))
	tables.AssertExpectations(t)
}
