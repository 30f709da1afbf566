package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// Response is the body of every non-data reply.
type Response struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// write outputs v as JSON with status.
func write(rw http.ResponseWriter, status int, v any) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_, _ = rw.Write(buf.Bytes())
}

// read decodes the JSON request body into v, answering 400 on failure.
func read(rw http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(rw, fmt.Sprintf("read body: %s", err.Error()))
		return false
	}
	return true
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func badRequest(rw http.ResponseWriter, detail string) {
	write(rw, http.StatusBadRequest, Response{Message: "Invalid request", Detail: detail})
}

// pageParam returns the required page query parameter.
func pageParam(rw http.ResponseWriter, r *http.Request) (string, bool) {
	page := r.URL.Query().Get("page")
	if page == "" {
		badRequest(rw, `query parameter "page" is required`)
		return "", false
	}
	return page, true
}
