package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"paintrack/backend/internal/db"
)

var requiredColumns = []struct {
	table  string
	column string
}{
	{table: "User", column: "id"},
	{table: "UserSettings", column: "timezone"},
	{table: "UserSettings", column: "tone"},
	{table: "PainLog", column: "loggedAt"},
	{table: "PainLog", column: "painLevel"},
	{table: "PainLog", column: "medications"},
	{table: "PainLog", column: "functionalImpact"},
	{table: "PainLog", column: "seedTag"},
	{table: "ChatMessage", column: "content"},
}

// ValidateRuntimeSchema fails boot when a column the handlers query is
// missing, so a stale database surfaces before the first request.
func ValidateRuntimeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf("failed checking schema for %s.%s: %w", item.table, item.column, err)
		}
		if !ok {
			return fmt.Errorf("required column %s.%s is missing; set AUTO_APPLY_SCHEMA=true or apply internal/db/schema.sql", item.table, item.column)
		}
	}
	return nil
}

func columnExists(ctx context.Context, q db.Querier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := q.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
