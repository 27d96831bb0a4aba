package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// The gate page is served at /, the admin pages under /admin.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Gate.
	mux.HandleFunc("GET /{$}", h.Gate)
	mux.HandleFunc("POST /gate/scan", h.csrf(h.GateScan))
	mux.HandleFunc("POST /gate/manual", h.csrf(h.GateManual))

	// Admin.
	mux.HandleFunc("GET /admin/login", h.LoginPage)
	mux.HandleFunc("POST /admin/login", h.csrf(h.LoginSubmit))
	mux.HandleFunc("POST /admin/logout", h.csrf(h.Logout))
	mux.HandleFunc("GET /admin", h.admin(h.Dashboard))
	mux.HandleFunc("POST /admin/import", h.csrf(h.admin(h.ImportUpload)))
	mux.HandleFunc("POST /admin/attendees", h.csrf(h.admin(h.AddAttendee)))
	mux.HandleFunc("POST /admin/attendees/{id}/checkin", h.csrf(h.admin(h.CheckInAttendee)))
	mux.HandleFunc("POST /admin/attendees/{id}/reset", h.csrf(h.admin(h.ResetAttendee)))
	mux.HandleFunc("POST /admin/attendees/{id}/delete", h.csrf(h.admin(h.DeleteAttendee)))
	mux.HandleFunc("POST /admin/attendees/{id}/photo", h.csrf(h.admin(h.UploadPhoto)))
	mux.HandleFunc("POST /admin/attendees/{id}/photo/delete", h.csrf(h.admin(h.RemovePhoto)))
	mux.HandleFunc("POST /admin/reset-all", h.csrf(h.admin(h.ResetAll)))
	mux.HandleFunc("POST /admin/clear-all", h.csrf(h.admin(h.ClearAll)))
}
