package application

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// credentialFileName returns "<ticket>_<name>.png" with every run of
// characters outside [A-Za-z0-9] in either part collapsed to "_".
func credentialFileName(ticketID, name string) string {
	clean := func(s string) string {
		return strings.Trim(unsafeFileChars.ReplaceAllString(s, "_"), "_")
	}
	return clean(ticketID) + "_" + clean(name) + ".png"
}

// WriteCredentialArchive streams a ZIP holding every attendee's credential
// image to w and returns the number of images written.
func (s *RegistryService) WriteCredentialArchive(ctx context.Context, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	count := 0
	used := make(map[string]int)

	for a, err := range s.store.ListAll(ctx) {
		if err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("list attendees: %w", err)
		}

		cred, err := s.issuer.Credential(a)
		if err != nil {
			_ = zw.Close()
			return count, err
		}

		png, err := s.renderer.RenderPNG(ctx, cred.Payload)
		if err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("render credential %d: %w", a.ID, err)
		}

		name := credentialFileName(a.TicketID, a.Name)
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s_%d.png", strings.TrimSuffix(name, ".png"), n+1)
		}
		used[credentialFileName(a.TicketID, a.Name)]++

		f, err := zw.Create(name)
		if err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := f.Write(png); err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("write %s: %w", name, err)
		}
		count++
	}

	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("finish archive: %w", err)
	}

	s.logger.Info("credential archive written", "count", count)
	return count, nil
}
