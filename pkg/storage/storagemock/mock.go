package storagemock

import (
	"context"
	"time"

	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/gridslack/gridslack/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) InsertCurtailmentEvent(ctx context.Context, event types.CurtailmentEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func (m *MockDatabase) GetCurtailmentEvent(ctx context.Context, area, id string) (types.CurtailmentEvent, error) {
	args := m.Called(ctx, area, id)
	if len(args) > 0 {
		return args.Get(0).(types.CurtailmentEvent), args.Error(1)
	}
	return types.CurtailmentEvent{}, nil
}

func (m *MockDatabase) GetCurtailmentEvents(ctx context.Context, area string, start, end time.Time) ([]types.CurtailmentEvent, error) {
	args := m.Called(ctx, area, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.CurtailmentEvent), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) CloseCurtailmentEvent(ctx context.Context, area, id string, endedAt time.Time) error {
	args := m.Called(ctx, area, id, endedAt)
	return args.Error(0)
}

func (m *MockDatabase) InsertRecommendations(ctx context.Context, area string, recs []types.Recommendation) error {
	args := m.Called(ctx, area, recs)
	return args.Error(0)
}

func (m *MockDatabase) GetRecommendations(ctx context.Context, area string, start, end time.Time) ([]types.Recommendation, error) {
	args := m.Called(ctx, area, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.Recommendation), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpdateRecommendationOutcome(ctx context.Context, area, id string, outcome types.RecommendationOutcome) error {
	args := m.Called(ctx, area, id, outcome)
	return args.Error(0)
}

func (m *MockDatabase) GetBatteryState(ctx context.Context, area string) (types.BatteryState, error) {
	args := m.Called(ctx, area)
	if len(args) > 0 {
		return args.Get(0).(types.BatteryState), args.Error(1)
	}
	return types.BatteryState{}, nil
}

func (m *MockDatabase) SetBatteryState(ctx context.Context, state types.BatteryState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockDatabase) InsertDispatchLog(ctx context.Context, entry types.DispatchLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDatabase) GetDispatchLogs(ctx context.Context, area string, limit int) ([]types.DispatchLogEntry, error) {
	args := m.Called(ctx, area, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.DispatchLogEntry), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetDispatchLogsRange(ctx context.Context, area string, start, end time.Time) ([]types.DispatchLogEntry, error) {
	args := m.Called(ctx, area, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.DispatchLogEntry), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
