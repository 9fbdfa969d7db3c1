package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"paintrack/backend/internal/painlog"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var ErrPainLogNotFound = errors.New("pain log not found")

const painLogColumns = `id, "loggedAt", "painLevel", locations, triggers, medications,
	notes, "journalEntry", "sideEffects", "rxTaken", "functionalImpact", "impactTags"`

// PainLogFilter bounds a listing. Zero times leave that side open; Limit <= 0
// returns every match.
type PainLogFilter struct {
	Start       time.Time
	End         time.Time
	NewestFirst bool
	Limit       int
}

func InsertPainLog(ctx context.Context, q Querier, userID string, entry painlog.Entry, seedTag string) error {
	medications, err := json.Marshal(entry.Medications)
	if err != nil {
		return fmt.Errorf("encode medications: %w", err)
	}
	var tag any
	if seedTag != "" {
		tag = seedTag
	}
	_, err = q.Exec(
		ctx,
		`INSERT INTO "PainLog" (
			id, "userId", "loggedAt", "painLevel", locations, triggers, medications,
			notes, "journalEntry", "sideEffects", "rxTaken", "functionalImpact", "impactTags",
			"seedTag", "createdAt", "updatedAt"
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`,
		entry.ID,
		userID,
		entry.LoggedAt.UTC(),
		entry.PainLevel,
		nonNilStrings(entry.Locations),
		nonNilStrings(entry.Triggers),
		string(medications),
		entry.Notes,
		entry.JournalEntry,
		entry.SideEffects,
		entry.RxTaken,
		entry.FunctionalImpact,
		nonNilStrings(entry.ImpactTags),
		tag,
	)
	return err
}

func GetPainLog(ctx context.Context, q Querier, userID, id string) (painlog.Entry, error) {
	row := q.QueryRow(
		ctx,
		`SELECT `+painLogColumns+` FROM "PainLog" WHERE id = $1 AND "userId" = $2`,
		id,
		userID,
	)
	entry, err := scanPainLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return painlog.Entry{}, ErrPainLogNotFound
	}
	return entry, err
}

func ListPainLogs(ctx context.Context, q Querier, userID string, filter PainLogFilter) ([]painlog.Entry, error) {
	query := `SELECT ` + painLogColumns + ` FROM "PainLog" WHERE "userId" = $1`
	args := []any{userID}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start.UTC())
		query += fmt.Sprintf(` AND "loggedAt" >= $%d`, len(args))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End.UTC())
		query += fmt.Sprintf(` AND "loggedAt" <= $%d`, len(args))
	}
	if filter.NewestFirst {
		query += ` ORDER BY "loggedAt" DESC, "createdAt" DESC`
	} else {
		query += ` ORDER BY "loggedAt" ASC, "createdAt" ASC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]painlog.Entry, 0)
	for rows.Next() {
		entry, err := scanPainLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func UpdatePainLog(ctx context.Context, q Querier, userID string, entry painlog.Entry) error {
	medications, err := json.Marshal(entry.Medications)
	if err != nil {
		return fmt.Errorf("encode medications: %w", err)
	}
	tag, err := q.Exec(
		ctx,
		`UPDATE "PainLog" SET
			"loggedAt" = $3, "painLevel" = $4, locations = $5, triggers = $6,
			medications = $7::jsonb, notes = $8, "journalEntry" = $9, "sideEffects" = $10,
			"rxTaken" = $11, "functionalImpact" = $12, "impactTags" = $13, "updatedAt" = NOW()
		 WHERE id = $1 AND "userId" = $2`,
		entry.ID,
		userID,
		entry.LoggedAt.UTC(),
		entry.PainLevel,
		nonNilStrings(entry.Locations),
		nonNilStrings(entry.Triggers),
		string(medications),
		entry.Notes,
		entry.JournalEntry,
		entry.SideEffects,
		entry.RxTaken,
		entry.FunctionalImpact,
		nonNilStrings(entry.ImpactTags),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPainLogNotFound
	}
	return nil
}

func DeletePainLog(ctx context.Context, q Querier, userID, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM "PainLog" WHERE id = $1 AND "userId" = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPainLogNotFound
	}
	return nil
}

// DeleteSeededPainLogs removes rows written by the seed command under tag.
func DeleteSeededPainLogs(ctx context.Context, q Querier, userID, seedTag string) (int64, error) {
	tag, err := q.Exec(
		ctx,
		`DELETE FROM "PainLog" WHERE "userId" = $1 AND "seedTag" = $2`,
		userID,
		seedTag,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPainLog(row pgx.Row) (painlog.Entry, error) {
	var (
		entry       painlog.Entry
		medications []byte
	)
	if err := row.Scan(
		&entry.ID,
		&entry.LoggedAt,
		&entry.PainLevel,
		&entry.Locations,
		&entry.Triggers,
		&medications,
		&entry.Notes,
		&entry.JournalEntry,
		&entry.SideEffects,
		&entry.RxTaken,
		&entry.FunctionalImpact,
		&entry.ImpactTags,
	); err != nil {
		return painlog.Entry{}, err
	}
	if len(medications) > 0 {
		if err := json.Unmarshal(medications, &entry.Medications); err != nil {
			entry.Medications = nil
		}
	}
	return entry, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
