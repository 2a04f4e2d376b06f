package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxBodySize caps JSON request bodies (4MB).
const maxBodySize = 4 << 20

// sessionID returns the {sessionID} route parameter.
func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// decodeJSON reads a JSON body into v. Numbers decode as json.Number so
// values keep their precision until they are converted for a column.
// An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
// Negative or malformed values yield the default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}
