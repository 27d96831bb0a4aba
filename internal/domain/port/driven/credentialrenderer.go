package driven

import "context"

// CredentialRenderer turns a serialized credential payload into a PNG image.
type CredentialRenderer interface {
	RenderPNG(ctx context.Context, payload string) ([]byte, error)
}
