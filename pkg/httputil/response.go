// Package httputil provides HTTP handler utilities for the response
// envelope, JSON encoding, and common middleware.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WriteJSON writes a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteData writes a success envelope around data
func WriteData(w http.ResponseWriter, status int, data interface{}) error {
	return WriteJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// WriteErrorMessage writes a failure envelope with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError writes a failure envelope from an error
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}
