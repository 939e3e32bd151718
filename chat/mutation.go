package chat

import "time"

// MutationState tracks one optimistic write through its lifecycle.
type MutationState string

const (
	// StatePending means the local effect is applied and the write is in
	// flight.
	StatePending MutationState = "pending"
	// StateCommitted means the server confirmed the write.
	StateCommitted MutationState = "committed"
	// StateRolledBack means the write failed and the local effect was
	// reverted.
	StateRolledBack MutationState = "rolled_back"
)

// MutationKind distinguishes the send variants.
type MutationKind string

const (
	// MutationSendText is a text message send.
	MutationSendText MutationKind = "send_text"
	// MutationSendFile is a single-attachment send.
	MutationSendFile MutationKind = "send_file"
)

// Mutation is one optimistic send. ClientKey is the idempotency key attached
// to the request; a manual resubmission after a rollback gets a fresh key and
// therefore produces a distinct message server-side.
type Mutation struct {
	ClientKey  string
	Kind       MutationKind
	ReceiverID int64
	State      MutationState
	StartedAt  time.Time
}
