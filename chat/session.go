// Package chat holds the client-side state of the chat screen: the partner
// list with unread counts, the currently open conversation, and the compose
// box. Collections are read-through copies of server state refreshed by
// polling; every refresh replaces the whole collection.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinicsync/models"
	"clinicsync/poll"
)

const (
	messagePollKey = "chat.messages"
	partnerPollKey = "chat.partners"

	// DefaultForegroundInterval is the message poll cadence while a
	// conversation is open.
	DefaultForegroundInterval = 3 * time.Second
	// DefaultBackgroundInterval is the partner list poll cadence.
	DefaultBackgroundInterval = 30 * time.Second

	mutationLogCap = 32
)

var (
	// ErrNoActiveConversation is returned by send operations when no partner
	// is selected.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrEmptyMessage is returned when a text send carries only whitespace.
	ErrEmptyMessage = errors.New("message text is empty")
)

// Gateway is the slice of the remote API the session depends on.
type Gateway interface {
	FetchPartners(ctx context.Context) ([]models.Partner, error)
	FetchMessages(ctx context.Context, partnerID int64) ([]models.Message, error)
	SendText(ctx context.Context, receiverID int64, text, clientKey string) error
	SendFile(ctx context.Context, receiverID int64, filename string, r io.Reader) error
}

// KeyLog records the idempotency keys attached to outbound sends. A nil
// KeyLog disables recording.
type KeyLog interface {
	RecordSendKey(clientKey string, receiverID int64) error
}

// Options tunes a Session.
type Options struct {
	ForegroundInterval time.Duration
	BackgroundInterval time.Duration
	KeyLog             KeyLog
}

// Session is the mutable state behind the chat screen. All methods are safe
// for concurrent use with the polling goroutines.
type Session struct {
	gateway Gateway
	poller  *poll.Poller
	opts    Options

	mu              sync.Mutex
	partners        []models.Partner
	activePartnerID int64
	generation      uint64
	messages        []models.Message
	composeText     string
	mutations       []Mutation
}

// NewSession returns a session over the given gateway and poller.
func NewSession(gateway Gateway, poller *poll.Poller, opts Options) (*Session, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if poller == nil {
		return nil, errors.New("poller is required")
	}
	if opts.ForegroundInterval <= 0 {
		opts.ForegroundInterval = DefaultForegroundInterval
	}
	if opts.BackgroundInterval <= 0 {
		opts.BackgroundInterval = DefaultBackgroundInterval
	}

	return &Session{
		gateway: gateway,
		poller:  poller,
		opts:    opts,
	}, nil
}

// RefreshPartners fetches the partner list and replaces the local copy.
func (s *Session) RefreshPartners(ctx context.Context) error {
	partners, err := s.gateway.FetchPartners(ctx)
	if err != nil {
		return fmt.Errorf("refresh partners: %w", err)
	}

	s.mu.Lock()
	s.partners = partners
	s.mu.Unlock()

	return nil
}

// StartPartnerPolling begins the background partner list poll. It runs for
// the lifetime of the session; fetch failures are logged and the next tick is
// the retry.
func (s *Session) StartPartnerPolling(ctx context.Context) error {
	return s.poller.Start(ctx, partnerPollKey, s.opts.BackgroundInterval, func(ctx context.Context) {
		if err := s.RefreshPartners(ctx); err != nil {
			log.Printf("partner poll: %v", err)
		}
	})
}

// Open selects a conversation partner and starts the foreground message
// poll. Opening the partner that is already open is a no-op. Opening a
// different partner invalidates any poll response still in flight for the
// previous one.
func (s *Session) Open(ctx context.Context, partnerID int64) error {
	if partnerID <= 0 {
		return errors.New("partner ID is required")
	}

	s.mu.Lock()
	if s.activePartnerID == partnerID {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	generation := s.generation
	s.activePartnerID = partnerID
	s.messages = nil
	// The server marks inbound messages read during fetch; drop the badge
	// now instead of waiting for the next background poll.
	for i := range s.partners {
		if s.partners[i].ID == partnerID {
			s.partners[i].UnreadCount = 0
		}
	}
	s.mu.Unlock()

	s.poller.Stop(messagePollKey)
	return s.poller.Start(ctx, messagePollKey, s.opts.ForegroundInterval, func(ctx context.Context) {
		messages, err := s.gateway.FetchMessages(ctx, partnerID)
		if err != nil {
			log.Printf("message poll for partner %d: %v", partnerID, err)
			return
		}
		s.applyMessages(generation, messages)
	})
}

// Close leaves the active conversation and stops the foreground poll.
func (s *Session) Close() {
	s.poller.Stop(messagePollKey)

	s.mu.Lock()
	s.generation++
	s.activePartnerID = 0
	s.messages = nil
	s.mu.Unlock()
}

// applyMessages commits a fetched message list unless the conversation has
// changed since the fetch was issued.
func (s *Session) applyMessages(generation uint64, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return
	}
	s.messages = messages
}

// RefreshMessages fetches the active conversation immediately, outside the
// polling cadence. The result is subject to the same staleness gating as a
// scheduled poll.
func (s *Session) RefreshMessages(ctx context.Context) error {
	s.mu.Lock()
	partnerID := s.activePartnerID
	generation := s.generation
	s.mu.Unlock()

	if partnerID == 0 {
		return ErrNoActiveConversation
	}

	messages, err := s.gateway.FetchMessages(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("refresh messages: %w", err)
	}
	s.applyMessages(generation, messages)
	return nil
}

// SetComposeText replaces the compose box content.
func (s *Session) SetComposeText(text string) {
	s.mu.Lock()
	s.composeText = text
	s.mu.Unlock()
}

// ComposeText returns the compose box content.
func (s *Session) ComposeText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composeText
}

// SendCompose submits the compose box as a text message. The box is cleared
// before the request is issued; on failure the original text is restored
// verbatim and the error returned. On success the message list is refreshed
// immediately so the server-assigned message appears without waiting for the
// next tick. There is no automatic retry.
func (s *Session) SendCompose(ctx context.Context) error {
	s.mu.Lock()
	if s.activePartnerID == 0 {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	if strings.TrimSpace(s.composeText) == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	original := s.composeText
	receiverID := s.activePartnerID
	generation := s.generation
	s.composeText = ""
	s.mu.Unlock()

	mutation := s.beginMutation(MutationSendText, receiverID)

	err := s.gateway.SendText(ctx, receiverID, strings.TrimSpace(original), mutation.ClientKey)
	if err != nil {
		s.mu.Lock()
		s.composeText = original
		s.mu.Unlock()
		s.finishMutation(mutation.ClientKey, StateRolledBack)
		return fmt.Errorf("send message: %w", err)
	}

	s.finishMutation(mutation.ClientKey, StateCommitted)
	s.refreshAfterSend(ctx, receiverID, generation)
	return nil
}

// SendAttachment submits a single file to the active conversation. Text and
// attachments are mutually exclusive per call.
func (s *Session) SendAttachment(ctx context.Context, filename string, r io.Reader) error {
	s.mu.Lock()
	if s.activePartnerID == 0 {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	receiverID := s.activePartnerID
	generation := s.generation
	s.mu.Unlock()

	mutation := s.beginMutation(MutationSendFile, receiverID)

	if err := s.gateway.SendFile(ctx, receiverID, filename, r); err != nil {
		s.finishMutation(mutation.ClientKey, StateRolledBack)
		return fmt.Errorf("send attachment: %w", err)
	}

	s.finishMutation(mutation.ClientKey, StateCommitted)
	s.refreshAfterSend(ctx, receiverID, generation)
	return nil
}

// refreshAfterSend is the silent re-poll after a confirmed write. Failures
// here are absorbed: the regular foreground cadence will catch up.
func (s *Session) refreshAfterSend(ctx context.Context, partnerID int64, generation uint64) {
	messages, err := s.gateway.FetchMessages(ctx, partnerID)
	if err != nil {
		log.Printf("refresh after send to %d: %v", partnerID, err)
		return
	}
	s.applyMessages(generation, messages)
}

func (s *Session) beginMutation(kind MutationKind, receiverID int64) Mutation {
	mutation := Mutation{
		ClientKey:  uuid.NewString(),
		Kind:       kind,
		ReceiverID: receiverID,
		State:      StatePending,
		StartedAt:  time.Now(),
	}

	if s.opts.KeyLog != nil {
		if err := s.opts.KeyLog.RecordSendKey(mutation.ClientKey, receiverID); err != nil {
			log.Printf("record send key: %v", err)
		}
	}

	s.mu.Lock()
	s.mutations = append(s.mutations, mutation)
	if len(s.mutations) > mutationLogCap {
		s.mutations = s.mutations[len(s.mutations)-mutationLogCap:]
	}
	s.mu.Unlock()

	return mutation
}

func (s *Session) finishMutation(clientKey string, state MutationState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.mutations) - 1; i >= 0; i-- {
		if s.mutations[i].ClientKey == clientKey {
			s.mutations[i].State = state
			return
		}
	}
}

// Partners returns a copy of the partner list.
func (s *Session) Partners() []models.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Partner(nil), s.partners...)
}

// Messages returns a copy of the active conversation's messages.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// ActivePartnerID returns the open conversation's partner id, or 0.
func (s *Session) ActivePartnerID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePartnerID
}

// Mutations returns a copy of the recent send mutation log.
func (s *Session) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mutation(nil), s.mutations...)
}
