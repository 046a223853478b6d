package handlers

import (
	"net/http"
	"time"

	"github.com/deentrack/deentrack/habit"
	"github.com/gorilla/mux"
)

// CreateHabit handles POST /api/v1/habit.
func CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var in habit.CreateInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	created, err := habit.Create(r.Context(), userID, in, time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "habit created", created)
}

// ListHabits handles GET /api/v1/habit.
func ListHabits(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habits, err := habit.ListActive(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "habits fetched", habits)
}

// HabitHistory handles GET /api/v1/habit/history.
func HabitHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habits, err := habit.ListCompleted(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "habit history fetched", habits)
}

// GetHabit handles GET /api/v1/habit/{id}.
func GetHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habitID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	found, err := habit.Get(r.Context(), userID, habitID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "habit fetched", found)
}

// UpdateHabit handles PUT /api/v1/habit/{id}.
func UpdateHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habitID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	var in habit.UpdateInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	updated, err := habit.Update(r.Context(), userID, habitID, in)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "habit updated", updated)
}

// DeleteHabit handles DELETE /api/v1/habit/{id}.
func DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habitID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	if err := habit.Delete(r.Context(), userID, habitID); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "habit deleted", nil)
}

// CompleteHabitDay handles POST /api/v1/habit/{id}/day/complete. It
// toggles today's record, so calling it twice returns the day to
// uncompleted.
func CompleteHabitDay(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	habitID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	now := time.Now().UTC()
	updated, newlyCompleted, err := habit.MarkDayComplete(r.Context(), userID, habitID, todayOf(now), now)
	if err != nil {
		respondError(w, err)
		return
	}

	message := "progress updated"
	if newlyCompleted {
		message = "congratulations, habit completed!"
	}
	respond(w, http.StatusOK, message, updated)
}
