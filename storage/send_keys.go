package storage

import (
	"errors"
	"fmt"
)

// RecordSendKey logs an idempotency key attached to an outbound send.
func (s *Store) RecordSendKey(clientKey string, receiverID int64) error {
	if clientKey == "" {
		return errors.New("client_key is required")
	}
	if receiverID <= 0 {
		return errors.New("receiver_id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO send_keys (client_key, receiver_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(client_key) DO NOTHING`,
		clientKey,
		receiverID,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record send key %q: %w", clientKey, err)
	}

	return nil
}

// HasSendKey returns true if an idempotency key has already been recorded.
func (s *Store) HasSendKey(clientKey string) (bool, error) {
	if clientKey == "" {
		return false, errors.New("client_key is required")
	}

	var exists int
	if err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM send_keys WHERE client_key = ?)`,
		clientKey,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check send key %q: %w", clientKey, err)
	}

	return exists == 1, nil
}

// PruneSendKeys removes send_keys rows older than cutoff timestamp.
func (s *Store) PruneSendKeys(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM send_keys WHERE created_at < ?`, cutoffTimestamp)
	if err != nil {
		return 0, fmt.Errorf("prune send keys: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for send key prune: %w", err)
	}

	return rowsAffected, nil
}
