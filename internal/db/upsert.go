package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Placeholder selects the bind parameter syntax of the target database.
type Placeholder int

const (
	// Question uses "?" placeholders (SQLite).
	Question Placeholder = iota
	// Dollar uses "$1, $2, ..." placeholders (Postgres).
	Dollar
)

// UpsertConfig defines the parameters for a single-row upsert statement.
type UpsertConfig struct {
	Table        string   // target table (e.g., "parts_cache")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	Placeholder  Placeholder
}

// UpsertSQL builds an INSERT ... ON CONFLICT (keys) DO UPDATE statement taking
// one bind parameter per column, in column order. The statement is atomic in
// both SQLite and Postgres, so concurrent writers of the same key never create
// duplicate rows.
func UpsertSQL(cfg UpsertConfig) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
	}
	if len(updateCols) == 0 {
		return "", eris.New("db: upsert: no columns to update")
	}

	params := make([]string, len(cfg.Columns))
	for i := range cfg.Columns {
		if cfg.Placeholder == Dollar {
			params[i] = fmt.Sprintf("$%d", i+1)
		} else {
			params[i] = "?"
		}
	}

	setClauses := make([]string, len(updateCols))
	for i, col := range updateCols {
		quoted := pgx.Identifier{col}.Sanitize()
		setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(params, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		strings.Join(setClauses, ", "),
	), nil
}

// sanitizeTable handles schema-qualified table names like "public.parts_cache".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
