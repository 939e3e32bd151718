package chat

import (
	"context"
	"io"
	"sync"

	"clinicsync/models"
)

type sentText struct {
	ReceiverID int64
	Text       string
	ClientKey  string
}

// fakeGateway is an in-memory Gateway. FetchMessages for blockPartner waits
// for the request context to be cancelled before returning, which simulates a
// poll response arriving after the conversation changed.
type fakeGateway struct {
	mu           sync.Mutex
	partners     []models.Partner
	messages     map[int64][]models.Message
	blockPartner int64

	fetchErr error
	sendErr  error

	sentTexts []sentText
	sentFiles []string

	onSendText func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{messages: make(map[int64][]models.Message)}
}

func (g *fakeGateway) FetchPartners(ctx context.Context) ([]models.Partner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return append([]models.Partner(nil), g.partners...), nil
}

func (g *fakeGateway) FetchMessages(ctx context.Context, partnerID int64) ([]models.Message, error) {
	g.mu.Lock()
	blocked := g.blockPartner == partnerID
	g.mu.Unlock()
	if blocked {
		<-ctx.Done()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return append([]models.Message(nil), g.messages[partnerID]...), nil
}

func (g *fakeGateway) SendText(ctx context.Context, receiverID int64, text, clientKey string) error {
	if g.onSendText != nil {
		g.onSendText()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sentTexts = append(g.sentTexts, sentText{ReceiverID: receiverID, Text: text, ClientKey: clientKey})
	return nil
}

func (g *fakeGateway) SendFile(ctx context.Context, receiverID int64, filename string, r io.Reader) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sentFiles = append(g.sentFiles, filename)
	return nil
}

func (g *fakeGateway) sent() []sentText {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentText(nil), g.sentTexts...)
}

type fakeKeyLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *fakeKeyLog) RecordSendKey(clientKey string, receiverID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, clientKey)
	return nil
}
