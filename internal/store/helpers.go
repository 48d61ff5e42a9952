package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/UniversalShopper/ShopperChat/internal/models"
)

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use the postgres:// scheme or key=value form ("host=..."); anything else
// is treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanProcessEvents scans all process event rows, mapping NULL text columns
// back to empty strings.
func scanProcessEvents(rows *sql.Rows) ([]models.ProcessEvent, error) {
	var events []models.ProcessEvent
	for rows.Next() {
		var e models.ProcessEvent
		var message, screenshotURL sql.NullString
		if err := rows.Scan(&e.ProcessID, &e.Status, &e.Stage, &message, &screenshotURL, &e.Time); err != nil {
			return nil, fmt.Errorf("failed to scan process event row: %w", err)
		}
		e.Message = message.String
		e.ScreenshotURL = screenshotURL.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate process event rows: %w", err)
	}
	return events, nil
}
