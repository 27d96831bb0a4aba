package application

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

const maxTokenLen = 128

// DecodePayload extracts the credential from a raw scan. A JSON object must
// carry a non-empty string "token"; any other input is taken whole as a
// plain-text token. Older payloads used "event" for the event label; it is
// read when "eventLabel" is absent.
func DecodePayload(raw string) (model.CredentialPayload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.CredentialPayload{}, fmt.Errorf("%w: empty payload", ErrMalformedCredential)
	}

	var doc map[string]any
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &doc) == nil {
		token, _ := doc["token"].(string)
		token = strings.TrimSpace(token)
		if err := checkToken(token); err != nil {
			return model.CredentialPayload{}, err
		}

		p := model.CredentialPayload{
			Token:      token,
			Name:       stringField(doc, "name"),
			TicketID:   stringField(doc, "ticketId"),
			EventLabel: stringField(doc, "eventLabel"),
		}
		if p.EventLabel == "" {
			p.EventLabel = stringField(doc, "event")
		}
		return p, nil
	}

	if err := checkToken(trimmed); err != nil {
		return model.CredentialPayload{}, err
	}
	return model.CredentialPayload{Token: trimmed}, nil
}

// DecodeToken is DecodePayload returning only the token.
func DecodeToken(raw string) (string, error) {
	p, err := DecodePayload(raw)
	if err != nil {
		return "", err
	}
	return p.Token, nil
}

func checkToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: no token", ErrMalformedCredential)
	}
	if utf8.RuneCountInString(token) > maxTokenLen {
		return fmt.Errorf("%w: token longer than %d characters", ErrMalformedCredential, maxTokenLen)
	}
	for _, r := range token {
		if r == utf8.RuneError || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: token contains unprintable or space characters", ErrMalformedCredential)
		}
	}
	return nil
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
