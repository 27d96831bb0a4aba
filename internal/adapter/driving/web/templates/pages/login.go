package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/viewmodel"
)

// Login renders the admin password form.
func Login(v vm.LoginViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := templates.NewWriter(w)

		p.Raw(`<header><h1>`)
		p.Text(v.EventLabel)
		p.Raw(` admin</h1><a href="/">Gate</a></header>`)

		if v.Error != "" {
			p.Raw(`<p class="banner banner-error" role="alert">`)
			p.Text(v.Error)
			p.Raw(`</p>`)
		}

		p.Raw(`<form method="post" action="/admin/login">`)
		templates.CSRFField(p, v.CSRFToken)
		p.Raw(`<label>Password <input type="password" name="password" autofocus required></label>`)
		p.Raw(`<button type="submit">Sign in</button></form>`)

		return p.Err()
	})
}
