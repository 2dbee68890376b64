package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/backtrack"
	"github.com/banshee-data/crtreco/internal/crt/geometry"
	"github.com/banshee-data/crtreco/internal/crt/pipeline"
	"github.com/banshee-data/crtreco/internal/timeutil"
)

// ErrNotFound is returned when a run or event does not exist.
var ErrNotFound = errors.New("not found")

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Run is one invocation of the reconstruction over a set of input files.
type Run struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	ParamsJSON json.RawMessage `json:"params,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  int64           `json:"created_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	EventCount int             `json:"event_count"`
}

// EventRecord is a stored event result header.
type EventRecord struct {
	EventID   string           `json:"event_id"`
	RunID     string           `json:"run_id"`
	Run       uint32           `json:"run"`
	SubRun    uint32           `json:"subrun"`
	Event     uint32           `json:"event"`
	NHits     int              `json:"n_hits"`
	NClusters int              `json:"n_clusters"`
	Summary   pipeline.Summary `json:"summary"`
	CreatedAt int64            `json:"created_at"`
}

// ClusterRecord is a stored cluster with its member hits and truth match.
type ClusterRecord struct {
	Index int `json:"index"`
	crt.Cluster
	Hits  []crt.StripHit              `json:"hits"`
	Match *backtrack.TruthMatchResult `json:"match,omitempty"`
}

// MatchRecord is a stored truth match. ObjectKey is the cluster index for
// clusters, the hit key for hits and the upstream key for input clusters.
type MatchRecord struct {
	Kind      pipeline.MatchKind `json:"kind"`
	ObjectKey uint64             `json:"object_key"`
	backtrack.TruthMatchResult
}

// ResultStore persists reconstruction results.
type ResultStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewResultStore creates a new ResultStore over a migrated database.
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used for timestamps and busy backoff.
func (s *ResultStore) SetClock(clock timeutil.Clock) {
	s.clock = clock
}

// BeginRun records a new run and returns it. params is stored as JSON.
func (s *ResultStore) BeginRun(source string, params any) (*Run, error) {
	run := &Run{
		RunID:     uuid.New().String(),
		Source:    source,
		Status:    RunStatusRunning,
		CreatedAt: s.clock.Now().UnixNano(),
	}

	var paramsStr interface{}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal run params: %w", err)
		}
		run.ParamsJSON = data
		paramsStr = string(data)
	}

	err := retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO crt_runs (run_id, created_at, source, params_json, status)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Source, paramsStr, run.Status,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run complete or failed.
func (s *ResultStore) FinishRun(runID, status string) error {
	return retryOnBusy(s.clock, func() error {
		result, err := s.db.Exec(`
			UPDATE crt_runs SET status = ?, finished_at = ? WHERE run_id = ?`,
			status, s.clock.Now().UnixNano(), runID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

// WriteEvent stores one event result under runID in a single transaction
// and returns the new event id.
func (s *ResultStore) WriteEvent(ctx context.Context, runID string, res *pipeline.EventResult) (string, error) {
	eventID := uuid.New().String()
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	err = retryOnBusy(s.clock, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO crt_events (
				event_id, run_id, run, subrun, event, n_hits, n_clusters, summary_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eventID, runID, res.Run, res.SubRun, res.Event,
			res.Summary.NHits, res.Summary.NClusters, string(summary), s.clock.Now().UnixNano(),
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		for i, c := range res.Clusters {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO crt_clusters (
					event_id, cluster_index, tagger, ts0, ts1, unixs, n_hits, three_d
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				eventID, i, c.Cluster.Tagger.String(), c.Cluster.Ts0, c.Cluster.Ts1, c.Cluster.UnixS,
				c.Cluster.NHits, c.Cluster.ThreeD,
			); err != nil {
				return fmt.Errorf("insert cluster %d: %w", i, err)
			}
			for pos, h := range c.Hits {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO crt_cluster_hits (
						event_id, cluster_index, position, hit_key, channel, ts0, ts1, unixs
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					eventID, i, pos, int64(h.Key), h.Channel, h.Ts0, h.Ts1, h.UnixS,
				); err != nil {
					return fmt.Errorf("insert cluster %d hit %d: %w", i, h.Key, err)
				}
			}
		}

		insertMatch := func(kind pipeline.MatchKind, key uint64, m backtrack.TruthMatchResult) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO crt_truth_matches (
					event_id, kind, object_key, track_id, purity, completeness
				) VALUES (?, ?, ?, ?, ?, ?)`,
				eventID, string(kind), int64(key), m.TrackID, m.Purity, m.Completeness,
			)
			if err != nil {
				return fmt.Errorf("insert %s match %d: %w", kind, key, err)
			}
			return nil
		}
		for i, m := range res.ClusterMatches {
			if err := insertMatch(pipeline.KindCluster, uint64(i), m); err != nil {
				return err
			}
		}
		for _, hm := range res.HitMatches {
			if err := insertMatch(pipeline.KindHit, hm.Hit.Key, hm.Match); err != nil {
				return err
			}
		}
		for _, im := range res.InputClusterMatches {
			if err := insertMatch(pipeline.KindInputCluster, im.Key, im.Match); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return eventID, nil
}

// Sink returns a pipeline.Sink writing into runID.
func (s *ResultStore) Sink(runID string) pipeline.Sink {
	return pipeline.SinkFunc(func(ctx context.Context, res *pipeline.EventResult) error {
		_, err := s.WriteEvent(ctx, runID, res)
		return err
	})
}

const runColumns = `
	r.run_id, r.source, r.params_json, r.status, r.created_at, r.finished_at,
	(SELECT COUNT(*) FROM crt_events e WHERE e.run_id = r.run_id)`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	var (
		r          Run
		params     sql.NullString
		finishedAt sql.NullInt64
	)
	if err := scanner.Scan(&r.RunID, &r.Source, &params, &r.Status, &r.CreatedAt, &finishedAt, &r.EventCount); err != nil {
		return nil, err
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	r.FinishedAt = finishedAt.Int64
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *ResultStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`SELECT` + runColumns + ` FROM crt_runs r ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (s *ResultStore) GetRun(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT`+runColumns+` FROM crt_runs r WHERE r.run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListEvents returns the events of a run in run/subrun/event order.
func (s *ResultStore) ListEvents(runID string) ([]*EventRecord, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT event_id, run_id, run, subrun, event, n_hits, n_clusters, summary_json, created_at
		FROM crt_events
		WHERE run_id = ?
		ORDER BY run, subrun, event`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		var (
			e       EventRecord
			summary string
		)
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Run, &e.SubRun, &e.Event, &e.NHits, &e.NClusters, &summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &e.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of event %s: %w", e.EventID, err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *ResultStore) eventExists(eventID string) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM crt_events WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return fmt.Errorf("query event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// ClustersForEvent returns an event's clusters in production order with
// their hits and truth matches.
func (s *ResultStore) ClustersForEvent(eventID string) ([]*ClusterRecord, error) {
	if err := s.eventExists(eventID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT c.cluster_index, c.tagger, c.ts0, c.ts1, c.unixs, c.n_hits, c.three_d,
		       m.track_id, m.purity, m.completeness
		FROM crt_clusters c
		LEFT JOIN crt_truth_matches m
		  ON m.event_id = c.event_id AND m.kind = ? AND m.object_key = c.cluster_index
		WHERE c.event_id = ?
		ORDER BY c.cluster_index`, string(pipeline.KindCluster), eventID)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*ClusterRecord
	for rows.Next() {
		var (
			c            ClusterRecord
			tagger       string
			trackID      sql.NullInt64
			purity       sql.NullFloat64
			completeness sql.NullFloat64
		)
		if err := rows.Scan(&c.Index, &tagger, &c.Ts0, &c.Ts1, &c.UnixS, &c.NHits, &c.ThreeD,
			&trackID, &purity, &completeness); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if c.Tagger, err = geometry.ParseTagger(tagger); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", c.Index, err)
		}
		if trackID.Valid {
			c.Match = &backtrack.TruthMatchResult{
				TrackID:      int(trackID.Int64),
				Purity:       purity.Float64,
				Completeness: completeness.Float64,
			}
		}
		clusters = append(clusters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	hitRows, err := s.db.Query(`
		SELECT cluster_index, hit_key, channel, ts0, ts1, unixs
		FROM crt_cluster_hits
		WHERE event_id = ?
		ORDER BY cluster_index, position`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query cluster hits: %w", err)
	}
	defer hitRows.Close()

	for hitRows.Next() {
		var (
			idx int
			key int64
			h   crt.StripHit
		)
		if err := hitRows.Scan(&idx, &key, &h.Channel, &h.Ts0, &h.Ts1, &h.UnixS); err != nil {
			return nil, fmt.Errorf("scan cluster hit: %w", err)
		}
		if idx < 0 || idx >= len(clusters) || clusters[idx].Index != idx {
			return nil, fmt.Errorf("cluster hit refers to unknown cluster %d", idx)
		}
		h.Key = uint64(key)
		clusters[idx].Hits = append(clusters[idx].Hits, h)
	}
	return clusters, hitRows.Err()
}

// MatchesForEvent returns an event's truth matches ordered by kind and key.
// An empty kind returns every kind.
func (s *ResultStore) MatchesForEvent(eventID string, kind pipeline.MatchKind) ([]MatchRecord, error) {
	if err := s.eventExists(eventID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT kind, object_key, track_id, purity, completeness
		FROM crt_truth_matches
		WHERE event_id = ? AND (? = '' OR kind = ?)
		ORDER BY kind, object_key`, eventID, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []MatchRecord
	for rows.Next() {
		var (
			m   MatchRecord
			k   string
			key int64
		)
		if err := rows.Scan(&k, &key, &m.TrackID, &m.Purity, &m.Completeness); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Kind = pipeline.MatchKind(k)
		m.ObjectKey = uint64(key)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteRun removes a run and everything stored under it.
func (s *ResultStore) DeleteRun(runID string) error {
	return retryOnBusy(s.clock, func() error {
		result, err := s.db.Exec(`DELETE FROM crt_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}
