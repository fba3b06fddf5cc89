// Package graph records computed matches as MATCHES edges between item nodes
// in Neo4j and tracks each pairing's handover status.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/nidhogg/findit/internal/match"
	"go.uber.org/zap"
)

// Status is where a pairing stands in the return process.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusReturned  Status = "returned"
	StatusClaimed   Status = "claimed"
	StatusUnclaimed Status = "unclaimed"
)

var statuses = []Status{StatusPending, StatusMatched, StatusReturned, StatusClaimed, StatusUnclaimed}

// ErrNotFound is returned when no edge carries the pair key.
var ErrNotFound = errors.New("match not found")

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

// Entry is one recorded pairing.
type Entry struct {
	LostID    string    `json:"lost_id"`
	FoundID   string    `json:"found_id"`
	PairKey   string    `json:"pair_key"`
	Score     float64   `json:"score"`
	Preset    string    `json:"preset"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger stores MATCHES edges.
type Ledger struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewLedger creates a driver for uri.
func NewLedger(uri, user, password string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Ledger{driver: driver, logger: logger}, nil
}

// Ping verifies the connection.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.driver.VerifyConnectivity(ctx)
}

// Close shuts down the driver.
func (l *Ledger) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// EnsureSchema creates the item id constraint.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`CREATE CONSTRAINT item_id IF NOT EXISTS FOR (i:Item) REQUIRE i.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("create item constraint: %w", err)
	}
	return nil
}

func resultRows(results []match.Result) []map[string]any {
	rows := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if r.LostID == "" || r.FoundID == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"lost_id":  r.LostID,
			"found_id": r.FoundID,
			"pair_key": r.PairKey,
			"score":    r.Score,
			"preset":   r.Preset,
		})
	}
	return rows
}

// RecordMatches merges one edge per result from the lost item to the found
// item. An existing edge keeps its status and the higher of the two scores.
func (l *Ledger) RecordMatches(ctx context.Context, results []match.Result) error {
	rows := resultRows(results)
	if len(rows) == 0 {
		return nil
	}
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`UNWIND $rows AS r
			 MERGE (lost:Item {id: r.lost_id}) ON CREATE SET lost.kind = 'lost'
			 MERGE (found:Item {id: r.found_id}) ON CREATE SET found.kind = 'found'
			 MERGE (lost)-[m:MATCHES]->(found)
			 ON CREATE SET m.pair_key = r.pair_key, m.score = r.score, m.preset = r.preset,
			               m.status = 'pending', m.created_at = datetime(), m.updated_at = datetime()
			 ON MATCH SET m.preset = CASE WHEN r.score > m.score THEN r.preset ELSE m.preset END,
			              m.score = CASE WHEN r.score > m.score THEN r.score ELSE m.score END,
			              m.updated_at = datetime()`,
			map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("record %d matches: %w", len(rows), err)
	}
	l.logger.Debug("matches recorded", zap.Int("count", len(rows)))
	return nil
}

// MatchesFor lists the recorded pairings touching itemID, best first.
func (l *Ledger) MatchesFor(ctx context.Context, itemID string) ([]Entry, error) {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (lost:Item)-[m:MATCHES]->(found:Item)
		 WHERE lost.id = $id OR found.id = $id
		 RETURN lost.id AS lost_id, found.id AS found_id, m.pair_key AS pair_key,
		        m.score AS score, m.preset AS preset, m.status AS status, m.updated_at AS updated_at
		 ORDER BY m.score DESC, m.pair_key`,
		map[string]any{"id": itemID})
	if err != nil {
		return nil, fmt.Errorf("matches for %s: %w", itemID, err)
	}

	var entries []Entry
	for result.Next(ctx) {
		rec := result.Record()
		e := Entry{}
		e.LostID, _, _ = neo4j.GetRecordValue[string](rec, "lost_id")
		e.FoundID, _, _ = neo4j.GetRecordValue[string](rec, "found_id")
		e.PairKey, _, _ = neo4j.GetRecordValue[string](rec, "pair_key")
		e.Score, _, _ = neo4j.GetRecordValue[float64](rec, "score")
		e.Preset, _, _ = neo4j.GetRecordValue[string](rec, "preset")
		status, _, _ := neo4j.GetRecordValue[string](rec, "status")
		e.Status = Status(status)
		e.UpdatedAt, _, _ = neo4j.GetRecordValue[time.Time](rec, "updated_at")
		entries = append(entries, e)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read matches for %s: %w", itemID, err)
	}
	return entries, nil
}

// SetStatus moves the pairing with pairKey to status.
func (l *Ledger) SetStatus(ctx context.Context, pairKey string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (:Item)-[m:MATCHES {pair_key: $key}]->(:Item)
		 SET m.status = $status, m.updated_at = datetime()
		 RETURN count(m) AS updated`,
		map[string]any{"key": pairKey, "status": string(status)})
	if err != nil {
		return fmt.Errorf("set status of %s: %w", pairKey, err)
	}
	rec, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("set status of %s: %w", pairKey, err)
	}
	updated, _, _ := neo4j.GetRecordValue[int64](rec, "updated")
	if updated == 0 {
		return fmt.Errorf("set status of %s: %w", pairKey, ErrNotFound)
	}
	return nil
}
