package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

const lastAlertedIDKey = "last_alerted_notification_id"

// LastAlertedID returns the newest notification id that has already been
// alerted, or 0 when nothing has been alerted yet.
func (s *Store) LastAlertedID() (int64, error) {
	var value int64
	err := s.db.QueryRow(
		`SELECT value FROM alert_state WHERE key = ?`,
		lastAlertedIDKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read last alerted ID: %w", err)
	}

	return value, nil
}

// SetLastAlertedID records the newest notification id that has been alerted.
// The value never moves backwards.
func (s *Store) SetLastAlertedID(id int64) error {
	if id <= 0 {
		return errors.New("notification ID must be > 0")
	}

	_, err := s.db.Exec(
		`INSERT INTO alert_state (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)`,
		lastAlertedIDKey,
		id,
	)
	if err != nil {
		return fmt.Errorf("set last alerted ID %d: %w", id, err)
	}

	return nil
}
