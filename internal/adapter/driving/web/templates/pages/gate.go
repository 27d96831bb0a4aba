// Package pages holds the GUI page components.
package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/viewmodel"
)

// Gate renders the operator page: a payload field for keyboard-wedge
// scanners and the manual search fallback.
func Gate(v vm.GateViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := templates.NewWriter(w)

		p.Raw(`<header><h1>`)
		p.Text(v.EventLabel)
		p.Raw(`</h1><a href="/admin">Admin</a></header>`)

		if v.Outcome != nil {
			outcome(p, v.Outcome)
		}
		if v.Error != "" {
			p.Raw(`<p class="banner banner-error" role="alert">`)
			p.Text(v.Error)
			p.Raw(`</p>`)
		}

		p.Raw(`<section><h2>Scan</h2><form method="post" action="/gate/scan" class="scan-form">`)
		templates.CSRFField(p, v.CSRFToken)
		p.Raw(`<input type="text" name="payload" id="payload" autocomplete="off" autofocus placeholder="Scan a credential">`)
		p.Raw(`<button type="submit">Check in</button></form></section>`)

		p.Raw(`<section><h2>Manual check-in</h2><form method="post" action="/gate/manual">`)
		templates.CSRFField(p, v.CSRFToken)
		p.Raw(`<label>Name <input type="text" name="name" autocomplete="off"></label>`)
		p.Raw(`<label>Ticket ID <input type="text" name="ticket_id" autocomplete="off"></label>`)
		p.Raw(`<button type="submit">Search and check in</button></form></section>`)

		if v.NotesHTML != "" {
			p.Raw(`<section class="notes">`)
			p.Raw(v.NotesHTML)
			p.Raw(`</section>`)
		}

		return p.Err()
	})
}

func outcome(p *templates.Writer, o *vm.OutcomeViewModel) {
	class := "banner-warn"
	if o.Success {
		class = "banner-ok"
	}
	p.Raw(`<div class="banner `)
	p.Raw(class)
	p.Raw(`" role="status" data-status="`)
	p.Text(o.Status)
	p.Raw(`"><strong>`)
	p.Text(o.Message)
	p.Raw(`</strong>`)
	if o.PhotoURI != "" {
		p.Raw(`<img class="attendee-photo" alt="Attendee photo" src="`)
		p.Text(o.PhotoURI)
		p.Raw(`">`)
	}
	if o.Name != "" {
		p.Raw(`<div>`)
		p.Text(o.Name)
		p.Raw(` &middot; `)
		p.Text(o.TicketID)
		p.Raw(`</div>`)
	}
	if o.ScanTime != "" {
		p.Raw(`<div>Scanned `)
		p.Text(o.ScanTime)
		p.Raw(`</div>`)
	}
	p.Raw(`</div>`)
}
