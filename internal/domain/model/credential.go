package model

// Credential is a freshly minted token together with the serialized payload
// meant for a scannable artifact. The token is the only authority key; the
// other payload fields are advisory display metadata.
type Credential struct {
	Token   string
	Payload string
}

// CredentialPayload is the JSON document embedded in a QR code.
type CredentialPayload struct {
	Token      string `json:"token"`
	Name       string `json:"name,omitempty"`
	TicketID   string `json:"ticketId,omitempty"`
	EventLabel string `json:"eventLabel,omitempty"`
}
