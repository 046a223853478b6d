package handlers

import (
	"net/http"
	"time"

	"github.com/deentrack/deentrack/prayer"
	"github.com/gorilla/mux"
)

// LogPrayers handles POST /api/v1/prayer. It creates today's six prayer
// records if they do not exist yet; repeating the call is harmless.
func LogPrayers(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	now := time.Now().UTC()
	prayers, created, err := prayer.EnsureTodayLogged(r.Context(), userID, todayOf(now), now)
	if err != nil {
		respondError(w, err)
		return
	}

	status := http.StatusOK
	message := "prayers already logged for today"
	if created {
		status = http.StatusCreated
		message = "prayers logged for today"
	}
	respond(w, status, message, prayers)
}

// TodayPrayers handles GET /api/v1/prayer/today.
func TodayPrayers(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	prayers, err := prayer.Today(r.Context(), userID, todayOf(time.Now().UTC()))
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "today's prayers fetched", prayers)
}

// CompletePrayer handles POST /api/v1/prayer/{id}/complete. Completing the
// last mandatory prayer of the day triggers the daily reward.
func CompletePrayer(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	prayerID, err := pathID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}

	now := time.Now().UTC()
	completed, err := prayer.MarkComplete(r.Context(), userID, prayerID, todayOf(now), now)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "prayer completed", completed)
}
