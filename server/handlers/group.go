package handlers

import (
	"net/http"
	"time"

	"github.com/deentrack/deentrack/group"
	"github.com/gorilla/mux"
)

// CreateGroup handles POST /api/v1/group/create.
func CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var in group.CreateInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	created, err := group.Create(r.Context(), userID, in, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "group created", created)
}

// JoinGroup handles POST /api/v1/group/{id}/join.
func JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	groupID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	member, err := group.Join(r.Context(), userID, groupID, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "group joined", member)
}
