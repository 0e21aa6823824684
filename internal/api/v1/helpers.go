package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxRequestBytes caps request bodies; a pid request is one short JSON object.
const maxRequestBytes = 64 << 10

// decodeRequest decodes the JSON body of r into v.
func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// respondJSON writes v as the JSON response body with the given status code.
func respondJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// parseResourceIDFromURL parses a URL path with the format
// "/api/v1/{apiPath}/{resourceID}" and returns the resource ID.
func parseResourceIDFromURL(url, apiPath string) (string, error) {
	url = strings.TrimPrefix(url, fmt.Sprintf("/api/v1/%s", apiPath))

	var resultPath []string
	for _, v := range strings.Split(url, "/") {
		if v != "" {
			resultPath = append(resultPath, v)
		}
	}

	switch len(resultPath) {
	case 0:
		return "", fmt.Errorf("no resource ID set in url path")
	case 1:
		return resultPath[0], nil
	default:
		return "", fmt.Errorf("invalid URL path")
	}
}
