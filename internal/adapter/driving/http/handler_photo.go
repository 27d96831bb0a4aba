package httphandler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/gatecheck/internal/application"
)

// maxPhotoUpload leaves room for multipart framing around the largest
// accepted photo.
const maxPhotoUpload = application.MaxPhotoBytes + 1<<20

// PhotoPath is where an attendee's stored photo is served.
func PhotoPath(id int64) string {
	return "/api/v1/admin/attendees/" + strconv.FormatInt(id, 10) + "/photo"
}

// PutPhoto stores an attendee photo sent as a multipart "photo" field or as
// the raw request body.
func (h *Handler) PutPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	data, err := ReadPhotoUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, err := h.registry.SetPhoto(r.Context(), id, data)
	if err != nil {
		h.writeServiceError(w, r, "set_photo", err)
		return
	}

	writeJSON(w, http.StatusOK, PhotoResponse{
		AttendeeID:  id,
		ContentType: photo.ContentType,
		Size:        len(photo.Data),
		URL:         PhotoPath(id),
	})
}

// GetPhoto serves the stored photo with its detected content type.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	photo, err := h.registry.Photo(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_photo", err)
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(photo.Data)
}

// DeletePhoto removes the stored photo.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid attendee id")
		return
	}

	if err := h.registry.DeletePhoto(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReadPhotoUpload returns the image bytes of a photo upload, read from the
// multipart "photo" field when the request is a form and from the body
// otherwise. Uploads over the photo limit are rejected.
func ReadPhotoUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid upload: %w", err)
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(maxPhotoUpload); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		return nil, errors.New("missing photo field")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	return data, nil
}
