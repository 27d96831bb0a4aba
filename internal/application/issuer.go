package application

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// tokenBytes is the amount of randomness in every credential token.
const tokenBytes = 16

// DefaultEventLabel is embedded in payloads when no label is configured.
const DefaultEventLabel = "Event"

// Issuer mints credential tokens and their scannable payloads. It performs
// no persistence; the registry stores what the issuer returns.
type Issuer struct {
	random     io.Reader
	eventLabel string
	failed     atomic.Bool
}

// NewIssuer creates an Issuer reading from random, or crypto/rand when
// random is nil.
func NewIssuer(random io.Reader, eventLabel string) *Issuer {
	if random == nil {
		random = rand.Reader
	}
	if strings.TrimSpace(eventLabel) == "" {
		eventLabel = DefaultEventLabel
	}
	return &Issuer{random: random, eventLabel: eventLabel}
}

// EventLabel returns the label embedded in every payload.
func (i *Issuer) EventLabel() string {
	return i.eventLabel
}

// Issue mints a new token for draft. Name and ticket id are required.
func (i *Issuer) Issue(draft model.AttendeeDraft) (model.Credential, error) {
	name := strings.TrimSpace(draft.Name)
	ticketID := strings.TrimSpace(draft.TicketID)
	if name == "" || ticketID == "" {
		return model.Credential{}, fmt.Errorf("%w: name and ticket id are required", ErrInvalidAttendee)
	}

	token, err := i.newToken()
	if err != nil {
		return model.Credential{}, err
	}

	payload, err := i.encode(token, name, ticketID)
	if err != nil {
		return model.Credential{}, err
	}

	return model.Credential{Token: token, Payload: payload}, nil
}

// Credential rebuilds the credential of a stored attendee.
func (i *Issuer) Credential(a model.Attendee) (model.Credential, error) {
	payload, err := i.encode(a.Token, a.Name, a.TicketID)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{Token: a.Token, Payload: payload}, nil
}

func (i *Issuer) newToken() (string, error) {
	if i.failed.Load() {
		return "", fmt.Errorf("%w: random source failed earlier", ErrGeneration)
	}

	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		i.failed.Store(true)
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return hex.EncodeToString(buf), nil
}

func (i *Issuer) encode(token, name, ticketID string) (string, error) {
	body, err := json.Marshal(model.CredentialPayload{
		Token:      token,
		Name:       name,
		TicketID:   ticketID,
		EventLabel: i.eventLabel,
	})
	if err != nil {
		return "", fmt.Errorf("encode credential payload: %w", err)
	}
	return string(body), nil
}
