package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridslack/gridslack/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrEventNotFound          = errors.New("curtailment event not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrBatteryNotFound        = errors.New("battery state not found")
)

// Database defines the interface for persisting events, recommendations,
// battery state, and dispatch logs.
type Database interface {
	// Curtailment events. Events are append-only; CloseCurtailmentEvent is
	// the only permitted mutation and just sets the end timestamp.
	InsertCurtailmentEvent(ctx context.Context, event types.CurtailmentEvent) (string, error)
	GetCurtailmentEvent(ctx context.Context, area, id string) (types.CurtailmentEvent, error)
	GetCurtailmentEvents(ctx context.Context, area string, start, end time.Time) ([]types.CurtailmentEvent, error)
	CloseCurtailmentEvent(ctx context.Context, area, id string, endedAt time.Time) error

	// Recommendations. Inserted as a batch per event; outcomes are mutated
	// later by an external operational process.
	InsertRecommendations(ctx context.Context, area string, recs []types.Recommendation) error
	GetRecommendations(ctx context.Context, area string, start, end time.Time) ([]types.Recommendation, error)
	UpdateRecommendationOutcome(ctx context.Context, area, id string, outcome types.RecommendationOutcome) error

	// Battery state, one document per area.
	GetBatteryState(ctx context.Context, area string) (types.BatteryState, error)
	SetBatteryState(ctx context.Context, state types.BatteryState) error

	// Dispatch logs, append-only.
	InsertDispatchLog(ctx context.Context, entry types.DispatchLogEntry) error
	GetDispatchLogs(ctx context.Context, area string, limit int) ([]types.DispatchLogEntry, error)
	GetDispatchLogsRange(ctx context.Context, area string, start, end time.Time) ([]types.DispatchLogEntry, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
