// Package handlers contains the HTTP handlers for the REST API. Every
// response uses the same envelope: {"success": bool, "message": string,
// "data": object}.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/deentrack/deentrack/habit"
	"github.com/deentrack/deentrack/lib/apierr"
	contextKey "github.com/deentrack/deentrack/server/contextkey"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respond writes a success envelope with the given status code.
func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data}); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// respondError maps the error's kind to an HTTP status and writes a
// failure envelope. Unclassified errors become an opaque 500.
func respondError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(envelope{Success: false, Message: message}); encodeErr != nil {
		log.Printf("failed to encode error response: %v", encodeErr)
	}
}

// decodeBody unmarshals the request body into dst, mapping malformed JSON
// to a validation error.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.Validation("invalid request body")
	}
	return nil
}

// userIDFrom extracts the authenticated user's ID from the request
// context, where the JWT middleware placed it.
func userIDFrom(r *http.Request) (primitive.ObjectID, error) {
	raw, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok || raw == "" {
		return primitive.NilObjectID, apierr.Validation("authentication required")
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.Validation("authentication required")
	}
	return id, nil
}

// pathID parses the {id} route variable into an ObjectID.
func pathID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.Validation("invalid id")
	}
	return id, nil
}

// todayOf returns the request's calendar date in UTC, the date key used
// by the ledgers and the prayer log.
func todayOf(now time.Time) string {
	return habit.Today(now)
}
