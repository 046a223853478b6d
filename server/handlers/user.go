package handlers

import (
	"net/http"

	"github.com/deentrack/deentrack/server/auth"
)

// Register handles POST /api/v1/user/register.
func Register(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	user, tokens, err := auth.SignUp(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "account created", map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// Login handles POST /api/v1/user/login.
func Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	user, tokens, err := auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "signed in", map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// Logout handles POST /api/v1/user/logout.
func Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := auth.SignOut(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "signed out", nil)
}

// RefreshToken handles POST /api/v1/user/refreshToken.
func RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	tokens, err := auth.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "tokens refreshed", tokens)
}

// ChangePassword handles POST /api/v1/user/change-password.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var in struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	if err := auth.ChangePassword(r.Context(), userID, in.CurrentPassword, in.NewPassword); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "password changed", nil)
}

// MyAccount handles GET /api/v1/user/my-account.
func MyAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	user, err := auth.CurrentUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "account fetched", user)
}

// UpdateAccount handles POST /api/v1/user/update-account.
func UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var in auth.UpdateAccountInput
	if err := decodeBody(r, &in); err != nil {
		respondError(w, err)
		return
	}

	user, err := auth.UpdateAccount(r.Context(), userID, in)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "account updated", user)
}
