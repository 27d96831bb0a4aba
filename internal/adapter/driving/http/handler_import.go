package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

const maxUploadBytes = 10 << 20

// Import registers attendees from JSON rows or an uploaded spreadsheet.
// Rejected rows are reported in the body; an aborted import returns the
// partial result with a 503 or 500 status.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	rows, err := readImportRows(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "no rows to import")
		return
	}

	res, err := h.importer.ImportRows(r.Context(), rows)
	resp := toImportResponse(res)
	if err != nil {
		status := http.StatusInternalServerError
		resp.Error = "import aborted"
		switch {
		case errors.Is(err, driven.ErrStorageUnavailable):
			status = http.StatusServiceUnavailable
			resp.Error = "import aborted: storage unavailable"
		case errors.Is(err, application.ErrGeneration):
			resp.Error = "import aborted: credential generation failed"
		}
		h.logger.Error("import aborted",
			"batch_id", res.BatchID,
			"imported", res.Imported,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func readImportRows(w http.ResponseWriter, r *http.Request) ([]map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("invalid upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field")
		}
		defer func() { _ = file.Close() }()

		rows, err := ParseSpreadsheet(header.Filename, file)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return req.Rows, nil
}
