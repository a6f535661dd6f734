package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Entities are stored as JSON blobs under per-area
// subcollections, keyed by RFC3339 timestamps so range queries can run on
// document IDs alone.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(area, name string) (*firestore.CollectionRef, error) {
	if area == "" {
		return nil, fmt.Errorf("area cannot be empty")
	}
	return f.client.Collection("areas").Doc(area).Collection(name), nil
}

// InsertCurtailmentEvent appends a new event to the "curtailment_events"
// collection as a JSON blob. The document ID is the RFC3339 occurrence
// timestamp for efficient range queries; it doubles as the event ID.
func (f *FirestoreProvider) InsertCurtailmentEvent(ctx context.Context, event types.CurtailmentEvent) (string, error) {
	coll, err := f.getCollection(event.Area, "curtailment_events")
	if err != nil {
		return "", err
	}
	docID := event.OccurredAt.UTC().Format(time.RFC3339)
	event.ID = docID

	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal curtailment event: %w", err)
	}
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": event.OccurredAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert curtailment event: %w", err)
	}
	return docID, nil
}

// GetCurtailmentEvent retrieves a single event by ID.
func (f *FirestoreProvider) GetCurtailmentEvent(ctx context.Context, area, id string) (types.CurtailmentEvent, error) {
	coll, err := f.getCollection(area, "curtailment_events")
	if err != nil {
		return types.CurtailmentEvent{}, err
	}
	doc, err := coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.CurtailmentEvent{}, ErrEventNotFound
		}
		return types.CurtailmentEvent{}, fmt.Errorf("failed to fetch curtailment event (id=%s): %w", id, err)
	}
	return decodeJSONDoc[types.CurtailmentEvent](ctx, doc, area)
}

// GetCurtailmentEvents retrieves events within the specified time range.
// Uses document ID range queries for efficient filtering without reading all
// documents.
func (f *FirestoreProvider) GetCurtailmentEvents(ctx context.Context, area string, start, end time.Time) ([]types.CurtailmentEvent, error) {
	coll, err := f.getCollection(area, "curtailment_events")
	if err != nil {
		return nil, err
	}
	return queryJSONRange[types.CurtailmentEvent](ctx, coll, area, start, end)
}

// CloseCurtailmentEvent sets the end timestamp on an ongoing episode. This is
// the only mutation events permit.
func (f *FirestoreProvider) CloseCurtailmentEvent(ctx context.Context, area, id string, endedAt time.Time) error {
	event, err := f.GetCurtailmentEvent(ctx, area, id)
	if err != nil {
		return err
	}
	event.EndedAt = &endedAt

	coll, err := f.getCollection(area, "curtailment_events")
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal curtailment event: %w", err)
	}
	_, err = coll.Doc(id).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to close curtailment event (id=%s): %w", id, err)
	}
	return nil
}

// InsertRecommendations appends a batch of recommendations. Each document ID
// is the RFC3339 generation timestamp suffixed with the action type, which is
// unique within a batch and keeps the collection range-queryable by time.
func (f *FirestoreProvider) InsertRecommendations(ctx context.Context, area string, recs []types.Recommendation) error {
	coll, err := f.getCollection(area, "recommendations")
	if err != nil {
		return err
	}
	bw := f.client.BulkWriter(ctx)
	for i := range recs {
		rec := recs[i]
		docID := rec.GeneratedAt.UTC().Format(time.RFC3339) + "_" + string(rec.ActionType)
		rec.ID = docID

		jsonBytes, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal recommendation: %w", err)
		}
		if _, err := bw.Set(coll.Doc(docID), map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": rec.GeneratedAt,
		}); err != nil {
			return fmt.Errorf("failed to queue recommendation write: %w", err)
		}
		recs[i] = rec
	}
	bw.End()
	return nil
}

// GetRecommendations retrieves recommendations generated within the time
// range.
func (f *FirestoreProvider) GetRecommendations(ctx context.Context, area string, start, end time.Time) ([]types.Recommendation, error) {
	coll, err := f.getCollection(area, "recommendations")
	if err != nil {
		return nil, err
	}
	return queryJSONRange[types.Recommendation](ctx, coll, area, start, end)
}

// UpdateRecommendationOutcome records the post-hoc results of a
// recommendation: the implemented flag and the actual figures.
func (f *FirestoreProvider) UpdateRecommendationOutcome(ctx context.Context, area, id string, outcome types.RecommendationOutcome) error {
	coll, err := f.getCollection(area, "recommendations")
	if err != nil {
		return err
	}
	doc, err := coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrRecommendationNotFound
		}
		return fmt.Errorf("failed to fetch recommendation (id=%s): %w", id, err)
	}
	rec, err := decodeJSONDoc[types.Recommendation](ctx, doc, area)
	if err != nil {
		return err
	}

	rec.Implemented = outcome.Implemented
	if outcome.ActualMWHSaved != nil {
		rec.ActualMWHSaved = outcome.ActualMWHSaved
	}
	if outcome.ActualCostCAD != nil {
		rec.ActualCostCAD = outcome.ActualCostCAD
	}
	if outcome.ActualRevenueCAD != nil {
		rec.ActualRevenueCAD = outcome.ActualRevenueCAD
	}
	if outcome.EffectivenessRating != nil {
		rec.EffectivenessRating = outcome.EffectivenessRating
	}

	jsonBytes, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	_, err = coll.Doc(id).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": rec.GeneratedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to update recommendation (id=%s): %w", id, err)
	}
	return nil
}

// GetBatteryState retrieves the current battery state for an area from the
// "battery/state" document.
func (f *FirestoreProvider) GetBatteryState(ctx context.Context, area string) (types.BatteryState, error) {
	coll, err := f.getCollection(area, "battery")
	if err != nil {
		return types.BatteryState{}, err
	}
	doc, err := coll.Doc("state").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.BatteryState{}, ErrBatteryNotFound
		}
		return types.BatteryState{}, fmt.Errorf("failed to fetch battery state: %w", err)
	}
	return decodeJSONDoc[types.BatteryState](ctx, doc, area)
}

// SetBatteryState saves the battery state for an area.
func (f *FirestoreProvider) SetBatteryState(ctx context.Context, state types.BatteryState) error {
	coll, err := f.getCollection(state.Area, "battery")
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal battery state: %w", err)
	}
	_, err = coll.Doc("state").Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": state.LastUpdated,
	})
	if err != nil {
		return fmt.Errorf("failed to save battery state: %w", err)
	}
	return nil
}

// InsertDispatchLog appends a dispatch log entry. The document ID is the
// RFC3339 dispatch timestamp.
func (f *FirestoreProvider) InsertDispatchLog(ctx context.Context, entry types.DispatchLogEntry) error {
	coll, err := f.getCollection(entry.Area, "dispatch_logs")
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch log: %w", err)
	}
	docID := entry.DispatchedAt.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": entry.DispatchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert dispatch log: %w", err)
	}
	return nil
}

// GetDispatchLogs retrieves the most recent dispatch log entries, newest
// first.
func (f *FirestoreProvider) GetDispatchLogs(ctx context.Context, area string, limit int) ([]types.DispatchLogEntry, error) {
	coll, err := f.getCollection(area, "dispatch_logs")
	if err != nil {
		return nil, err
	}
	iter := coll.
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var entries []types.DispatchLogEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating dispatch logs: %w", err)
		}
		entry, err := decodeJSONDoc[types.DispatchLogEntry](ctx, doc, area)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetDispatchLogsRange retrieves dispatch log entries within the time range.
func (f *FirestoreProvider) GetDispatchLogsRange(ctx context.Context, area string, start, end time.Time) ([]types.DispatchLogEntry, error) {
	coll, err := f.getCollection(area, "dispatch_logs")
	if err != nil {
		return nil, err
	}
	return queryJSONRange[types.DispatchLogEntry](ctx, coll, area, start, end)
}

// decodeJSONDoc unmarshals the "json" field of a document into T.
func decodeJSONDoc[T any](ctx context.Context, doc *firestore.DocumentSnapshot, area string) (T, error) {
	var v T
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("docID", doc.Ref.ID), slog.String("area", area), slog.Any("err", err))
		return v, fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("docID", doc.Ref.ID), slog.String("area", area))
		return v, fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc", slog.String("docID", doc.Ref.ID), slog.String("area", area), slog.Any("err", err))
		return v, fmt.Errorf("failed to unmarshal document (id=%s): %w", doc.Ref.ID, err)
	}
	return v, nil
}

// queryJSONRange runs a document ID range query over RFC3339-keyed docs and
// unmarshals each "json" field into T.
func queryJSONRange[T any](ctx context.Context, coll *firestore.CollectionRef, area string, start, end time.Time) ([]T, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating documents: %w", err)
		}
		v, err := decodeJSONDoc[T](ctx, doc, area)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
