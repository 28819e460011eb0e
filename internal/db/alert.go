package db

import (
	"context"
	"fmt"
	"time"

	"farm-console/internal/models"
)

// CreateAlert archives an alert. Re-archiving the same id only refreshes
// its read flag.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	query := `
    INSERT INTO farm_alert (id, type, title, message, severity, read, task_id, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (id) DO UPDATE SET read = EXCLUDED.read`

	createdAt := alert.Timestamp.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := d.Pool.Exec(ctx, query,
		string(alert.ID),
		alert.Type,
		alert.Title,
		alert.Message,
		string(alert.Severity),
		alert.Read,
		string(alert.TaskID),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// MarkAlertRead flags an archived alert as read. It reports whether the
// alert was found.
func (d *DB) MarkAlertRead(ctx context.Context, id models.ID) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `UPDATE farm_alert SET read = TRUE WHERE id = $1`, string(id))
	if err != nil {
		return false, fmt.Errorf("failed to mark alert %s read: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRecentAlerts returns archived alerts newest first.
func (d *DB) GetRecentAlerts(ctx context.Context, limit, offset int) ([]models.Alert, int, error) {
	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM farm_alert`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	rows, err := d.Pool.Query(ctx, `
	SELECT id, type, title, message, severity, read, task_id, created_at
	FROM farm_alert
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	list := []models.Alert{}
	for rows.Next() {
		var (
			alert           models.Alert
			id, taskID, sev string
		)
		if err := rows.Scan(&id, &alert.Type, &alert.Title, &alert.Message, &sev, &alert.Read, &taskID, &alert.Timestamp.Time); err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.ID = models.ID(id)
		alert.TaskID = models.ID(taskID)
		alert.Severity = models.Severity(sev)
		list = append(list, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read alerts: %w", err)
	}
	return list, total, nil
}
