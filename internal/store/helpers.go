package store

import (
	"database/sql"
	"fmt"
	"slices"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanRecords reads record rows ordered newest first and returns them oldest first.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var handler sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &handler, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record failed: %w", err)
		}
		r.Handler = handler.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records failed: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// listLimit maps a non-positive limit to "no limit" for LIMIT clauses.
func listLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
