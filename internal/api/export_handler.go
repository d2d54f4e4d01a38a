package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clipmark/clipmark-agent/internal/export"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := strings.ToLower(r.URL.Query().Get("format"))
		if format == "" {
			format = "csv"
		}

		video := cfg.Marks.VideoName()
		entries := cfg.Marks.Entries()

		var (
			body        string
			filename    string
			contentType string
			err         error
		)

		switch format {
		case "csv":
			ext := "webm"
			if cfg.Caps.MP4 {
				ext = "mp4"
			}
			body, err = export.ToCSV(video, entries, ext)
			filename = export.CSVFileName(video)
			contentType = "text/csv; charset=utf-8"
		case "json":
			body, err = export.ToJSON(video, entries)
			filename = export.JSONFileName(video)
			contentType = "application/json"
		default:
			WriteError(w, http.StatusBadRequest, "format must be csv or json", "BAD_REQUEST")
			return
		}

		if errors.Is(err, export.ErrNothingToExport) {
			WriteError(w, http.StatusConflict, err.Error(), "NOTHING_TO_EXPORT")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		// Keep a copy next to the clips so exports survive the browser
		// download dialog being dismissed.
		if cfg.Exports != nil {
			if saveErr := cfg.Exports.Save(filename, []byte(body)); saveErr != nil {
				cfg.Logger.Warn("failed to save export file", "filename", filename, "error", saveErr)
			}
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
