package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/healthmetric"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/engine"
	"github.com/banktrail/ingestor/internal/health"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/pkg/model"
)

// fakeLeases is a hand-written stand-in for scheduler.LeaseRepository: its
// contract (acquire/release keyed on connection id) is simple enough that a
// map-backed fake reads more plainly here than a generated mock.
type fakeLeases struct {
	mu         sync.Mutex
	contention map[uuid.UUID]bool
	released   map[uuid.UUID]int
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{contention: map[uuid.UUID]bool{}, released: map[uuid.UUID]int{}}
}

func (f *fakeLeases) Acquire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.contention[connectionID] {
		return apperr.LeaseContention{ConnectionID: connectionID.String()}
	}

	return nil
}

func (f *fakeLeases) Release(ctx context.Context, connectionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released[connectionID]++

	return nil
}

func emptyFleetHealth(t *testing.T, ctrl *gomock.Controller, connections connection.Repository) *health.Aggregator {
	t.Helper()

	metrics := healthmetric.NewMockRepository(ctrl)
	jobs := ingestionjob.NewMockRepository(ctrl)

	metrics.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return health.NewAggregator(health.Deps{
		Connections: connections,
		Jobs:        jobs,
		Metrics:     metrics,
		Logger:      &mlog.NoneLogger{},
	})
}

func TestTick_LeaseContention_SkipsConnectionWithoutRunningEngine(t *testing.T) {
	ctrl := gomock.NewController(t)

	connectionID := uuid.New()
	bucket := model.ScheduleHourly

	connections := connection.NewMockRepository(ctrl)
	connections.EXPECT().ListReady(gomock.Any(), bucket, gomock.Any(), gomock.Any()).
		Return([]*model.Connection{{ID: connectionID, ProviderID: "testbank"}}, nil)
	connections.EXPECT().ListFleetWide(gomock.Any(), gomock.Any()).Return(nil, nil)

	leases := newFakeLeases()
	leases.contention[connectionID] = true

	registry := provider.NewRegistry()
	eng := engine.New(engine.Deps{
		Connections:  connections,
		Registry:     registry,
		RateLimiters: provider.NewRateLimiters(nil, 1),
		Logger:       &mlog.NoneLogger{},
	})

	dispatcher := New(Deps{
		Connections: connections,
		Leases:      leases,
		Engine:      eng,
		Health:      emptyFleetHealth(t, ctrl, connections),
		Logger:      &mlog.NoneLogger{},
	})

	summary, err := dispatcher.Tick(context.Background(), bucket)

	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Zero(t, leases.released[connectionID])
}

func TestTick_EngineLookupFailure_CountsAsFailed(t *testing.T) {
	ctrl := gomock.NewController(t)

	connectionID := uuid.New()
	bucket := model.ScheduleDaily

	connections := connection.NewMockRepository(ctrl)
	connections.EXPECT().ListReady(gomock.Any(), bucket, gomock.Any(), gomock.Any()).
		Return([]*model.Connection{{ID: connectionID, ProviderID: "testbank"}}, nil)
	connections.EXPECT().ListFleetWide(gomock.Any(), gomock.Any()).Return(nil, nil)
	connections.EXPECT().FindAny(gomock.Any(), connectionID).
		Return(nil, apperr.EntityNotFoundError{EntityType: "connection", Message: "connection not found"})

	leases := newFakeLeases()

	eng := engine.New(engine.Deps{
		Connections:  connections,
		Registry:     provider.NewRegistry(),
		RateLimiters: provider.NewRateLimiters(nil, 1),
		Logger:       &mlog.NoneLogger{},
	})

	dispatcher := New(Deps{
		Connections: connections,
		Leases:      leases,
		Engine:      eng,
		Health:      emptyFleetHealth(t, ctrl, connections),
		Logger:      &mlog.NoneLogger{},
	})

	summary, err := dispatcher.Tick(context.Background(), bucket)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 1, leases.released[connectionID])
}
