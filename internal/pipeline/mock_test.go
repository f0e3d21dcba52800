package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/store"
)

// --- Source Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, target config.ScrapeTarget) ([]model.Listing, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Listing), args.Error(1)
}

// --- Store wrapper that fails saves ---

type failingSaveStore struct {
	store.Store
	err error
}

func (s *failingSaveStore) SaveResultSet(context.Context, *resultset.ResultSet) error {
	return s.err
}

// --- Cycler fake ---

type countingCycler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *countingCycler) RunCycle(_ context.Context, trigger string) (*model.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, trigger)
	if c.err != nil {
		return nil, c.err
	}
	return &model.Run{ID: "run", Status: model.RunStatusComplete}, nil
}

func (c *countingCycler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
