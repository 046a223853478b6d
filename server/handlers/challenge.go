package handlers

import (
	"net/http"
	"time"

	"github.com/deentrack/deentrack/challenge"
	"github.com/gorilla/mux"
)

// CreateChallenge handles POST /api/v1/challenge/create.
func CreateChallenge(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var in challenge.CreateInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	created, err := challenge.Create(r.Context(), userID, in, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "challenge created", created)
}

// JoinChallenge handles POST /api/v1/challenge/join/{id}.
func JoinChallenge(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	challengeID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	participant, err := challenge.Join(r.Context(), userID, challengeID, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "challenge joined", participant)
}

// UpdateChallengeProgress handles PATCH /api/v1/challenge/{id}/progress.
func UpdateChallengeProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	challengeID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	participant, err := challenge.UpdateProgress(r.Context(), userID, challengeID, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	message := "progress updated"
	if participant.Completed {
		message = "congratulations, challenge completed!"
	}
	respond(w, http.StatusOK, message, participant)
}

// MyChallenges handles GET /api/v1/challenge/my-challenges.
func MyChallenges(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	enrollments, err := challenge.MyChallenges(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "challenges fetched", enrollments)
}

// ChallengeDetails handles GET /api/v1/challenge/{id}/detail.
func ChallengeDetails(w http.ResponseWriter, r *http.Request) {
	if _, err := userIDFrom(r); err != nil {
		respondError(w, err)
		return
	}

	challengeID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	details, err := challenge.GetDetails(r.Context(), challengeID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "challenge details fetched", details)
}
