package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/viewmodel"
)

// Dashboard renders the admin dashboard: counters, upload, attendee table,
// bulk actions and the recent audit trail.
func Dashboard(v vm.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := templates.NewWriter(w)

		p.Raw(`<header><h1>`)
		p.Text(v.EventLabel)
		p.Raw(` admin</h1><a href="/">Gate</a>`)
		postButton(p, v.CSRFToken, "/admin/logout", "Sign out", "")
		p.Raw(`</header>`)

		if v.Notice != "" {
			p.Raw(`<p class="banner banner-ok" role="status">`)
			p.Text(v.Notice)
			p.Raw(`</p>`)
		}
		if v.Error != "" {
			p.Raw(`<p class="banner banner-error" role="alert">`)
			p.Text(v.Error)
			p.Raw(`</p>`)
		}

		p.Raw(`<section class="stats">`)
		stat(p, "Total", v.Stats.Total)
		stat(p, "Checked in", v.Stats.Used)
		stat(p, "Pending", v.Stats.Pending)
		p.Raw(`</section>`)

		if v.Import != nil {
			importSummary(p, v.Import)
		}

		p.Raw(`<section><h2>Import</h2><form method="post" action="/admin/import" enctype="multipart/form-data">`)
		templates.CSRFField(p, v.CSRFToken)
		p.Raw(`<input type="file" name="file" accept=".csv,.xlsx" required>`)
		p.Raw(`<button type="submit">Upload</button></form></section>`)

		p.Raw(`<section><h2>Add attendee</h2><form method="post" action="/admin/attendees">`)
		templates.CSRFField(p, v.CSRFToken)
		p.Raw(`<input type="text" name="name" placeholder="Name" required>`)
		p.Raw(`<input type="text" name="ticket_id" placeholder="Ticket ID" required>`)
		p.Raw(`<input type="email" name="email" placeholder="Email">`)
		p.Raw(`<button type="submit">Add</button></form></section>`)

		p.Raw(`<section><h2>Attendees</h2><form method="get" action="/admin">`)
		p.Raw(`<input type="search" name="q" placeholder="Name or ticket ID" value="`)
		p.Text(v.Query)
		p.Raw(`"><button type="submit">Search</button></form>`)
		attendeeTable(p, v)
		p.Raw(`</section>`)

		p.Raw(`<section><h2>Downloads</h2><ul>`)
		p.Raw(`<li><a href="/api/v1/admin/export.csv">Export CSV</a></li>`)
		p.Raw(`<li><a href="/api/v1/admin/export.json">Export JSON</a></li>`)
		p.Raw(`<li><a href="/api/v1/admin/credentials.zip">All credentials (ZIP)</a></li>`)
		p.Raw(`</ul></section>`)

		p.Raw(`<section class="danger"><h2>Bulk actions</h2>`)
		postButton(p, v.CSRFToken, "/admin/reset-all", "Reset all scans", "Reset every check-in?")
		postButton(p, v.CSRFToken, "/admin/clear-all", "Delete all attendees", "Delete every attendee and credential? This cannot be undone.")
		p.Raw(`</section>`)

		eventTable(p, v.Events)

		return p.Err()
	})
}

func stat(p *templates.Writer, label string, n int) {
	p.Raw(`<div class="stat"><span class="stat-value">`)
	p.Raw(strconv.Itoa(n))
	p.Raw(`</span><span class="stat-label">`)
	p.Text(label)
	p.Raw(`</span></div>`)
}

func importSummary(p *templates.Writer, s *vm.ImportSummaryViewModel) {
	class := "banner-ok"
	if s.Aborted {
		class = "banner-error"
	}
	p.Raw(`<section class="banner `)
	p.Raw(class)
	p.Raw(`"><strong>`)
	p.Text(fmt.Sprintf("Imported %d, rejected %d", s.Imported, len(s.Rejected)))
	if s.Aborted {
		p.Text(" (import stopped early, retry the remaining rows)")
	}
	p.Raw(`</strong>`)
	if len(s.Rejected) > 0 {
		p.Raw(`<ul>`)
		for _, r := range s.Rejected {
			p.Raw(`<li>`)
			p.Text(fmt.Sprintf("Row %d: %s", r.Row, r.Reason))
			p.Raw(`</li>`)
		}
		p.Raw(`</ul>`)
	}
	p.Raw(`</section>`)
}

func attendeeTable(p *templates.Writer, v vm.DashboardViewModel) {
	if len(v.Attendees) == 0 {
		p.Raw(`<p>No attendees.</p>`)
		return
	}

	p.Raw(`<table><thead><tr><th>Name</th><th>Ticket ID</th><th>Email</th><th>Status</th><th>Scan time</th><th></th></tr></thead><tbody>`)
	for _, a := range v.Attendees {
		base := "/admin/attendees/" + strconv.FormatInt(a.ID, 10)
		p.Raw(`<tr><td>`)
		p.Text(a.Name)
		p.Raw(`</td><td>`)
		p.Text(a.TicketID)
		p.Raw(`</td><td>`)
		p.Text(a.Email)
		p.Raw(`</td><td>`)
		if a.Used {
			p.Raw(`<span class="badge badge-used">Checked in</span>`)
		} else {
			p.Raw(`<span class="badge">Pending</span>`)
		}
		p.Raw(`</td><td>`)
		p.Text(a.ScanTime)
		p.Raw(`</td><td class="actions"><a href="`)
		p.Text(a.QRPath)
		p.Raw(`">QR</a>`)
		photoActions(p, v.CSRFToken, base, a.PhotoURL)
		if a.Used {
			postButton(p, v.CSRFToken, base+"/reset", "Reset", "")
		} else {
			postButton(p, v.CSRFToken, base+"/checkin", "Check in", "")
		}
		postButton(p, v.CSRFToken, base+"/delete", "Delete", "Delete this attendee?")
		p.Raw(`</td></tr>`)
	}
	p.Raw(`</tbody></table>`)
}

// photoActions renders the photo link and an upload form whose file input
// opens the front camera on phones.
func photoActions(p *templates.Writer, csrfToken, base, photoURL string) {
	if photoURL != "" {
		p.Raw(`<a href="`)
		p.Text(photoURL)
		p.Raw(`">Photo</a>`)
		postButton(p, csrfToken, base+"/photo/delete", "Remove photo", "Remove this photo?")
	}
	p.Raw(`<form method="post" class="inline" enctype="multipart/form-data" action="`)
	p.Text(base + "/photo")
	p.Raw(`">`)
	templates.CSRFField(p, csrfToken)
	p.Raw(`<input type="file" name="photo" accept="image/*" capture="user" required>`)
	p.Raw(`<button type="submit">Upload photo</button></form>`)
}

func eventTable(p *templates.Writer, events []vm.ScanEventViewModel) {
	if len(events) == 0 {
		return
	}
	p.Raw(`<section><h2>Recent scans</h2><table><thead><tr><th>When</th><th>Source</th><th>Status</th><th>Detail</th></tr></thead><tbody>`)
	for _, e := range events {
		p.Raw(`<tr><td>`)
		p.Text(e.When)
		p.Raw(`</td><td>`)
		p.Text(e.Source)
		p.Raw(`</td><td>`)
		p.Text(e.Status)
		p.Raw(`</td><td>`)
		p.Text(e.Detail)
		p.Raw(`</td></tr>`)
	}
	p.Raw(`</tbody></table></section>`)
}

// postButton renders a single-button form. A non-empty confirm message is
// shown by gate.js before submitting.
func postButton(p *templates.Writer, csrfToken, action, label, confirm string) {
	p.Raw(`<form method="post" class="inline" action="`)
	p.Text(action)
	p.Raw(`"`)
	if confirm != "" {
		p.Raw(` data-confirm="`)
		p.Text(confirm)
		p.Raw(`"`)
	}
	p.Raw(`>`)
	templates.CSRFField(p, csrfToken)
	p.Raw(`<button type="submit">`)
	p.Text(label)
	p.Raw(`</button></form>`)
}
