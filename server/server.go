// Package server wires the REST API: routing, JWT validation, panic
// recovery, CORS and request logging.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	contextKey "github.com/deentrack/deentrack/server/contextkey"
	"github.com/deentrack/deentrack/server/handlers"
	"github.com/form3tech-oss/jwt-go"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// jwtMiddleware reads the JWT from the Authorization header, verifies its
// signature and expiry, and injects the user's ID into the request
// context. Requests without a valid token are rejected before reaching
// the handler.
func jwtMiddleware(signingKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) != 2 {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(signingKey), nil
			})
			if err != nil {
				if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors == jwt.ValidationErrorExpired {
					http.Error(w, "token has expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recoveryMiddleware recovers from panics and provides a generic error
// message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the full API router. Exported separately from Start so
// tests can drive it with httptest.
func NewRouter(signingKey string) *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public account endpoints.
	user := api.PathPrefix("/user").Subrouter()
	user.HandleFunc("/register", handlers.Register).Methods("POST")
	user.HandleFunc("/login", handlers.Login).Methods("POST")
	user.HandleFunc("/refreshToken", handlers.RefreshToken).Methods("POST")

	// Authenticated account endpoints.
	account := api.PathPrefix("/user").Subrouter()
	account.Use(jwtMiddleware(signingKey))
	account.HandleFunc("/logout", handlers.Logout).Methods("POST")
	account.HandleFunc("/change-password", handlers.ChangePassword).Methods("POST")
	account.HandleFunc("/my-account", handlers.MyAccount).Methods("GET")
	account.HandleFunc("/update-account", handlers.UpdateAccount).Methods("POST")

	habit := api.PathPrefix("/habit").Subrouter()
	habit.Use(jwtMiddleware(signingKey))
	habit.HandleFunc("", handlers.CreateHabit).Methods("POST")
	habit.HandleFunc("", handlers.ListHabits).Methods("GET")
	habit.HandleFunc("/history", handlers.HabitHistory).Methods("GET")
	habit.HandleFunc("/{id}", handlers.GetHabit).Methods("GET")
	habit.HandleFunc("/{id}", handlers.UpdateHabit).Methods("PUT")
	habit.HandleFunc("/{id}", handlers.DeleteHabit).Methods("DELETE")
	habit.HandleFunc("/{id}/day/complete", handlers.CompleteHabitDay).Methods("POST")

	prayer := api.PathPrefix("/prayer").Subrouter()
	prayer.Use(jwtMiddleware(signingKey))
	prayer.HandleFunc("", handlers.LogPrayers).Methods("POST")
	prayer.HandleFunc("/today", handlers.TodayPrayers).Methods("GET")
	prayer.HandleFunc("/{id}/complete", handlers.CompletePrayer).Methods("POST")

	challenge := api.PathPrefix("/challenge").Subrouter()
	challenge.Use(jwtMiddleware(signingKey))
	challenge.HandleFunc("/create", handlers.CreateChallenge).Methods("POST")
	challenge.HandleFunc("/join/{id}", handlers.JoinChallenge).Methods("POST")
	challenge.HandleFunc("/my-challenges", handlers.MyChallenges).Methods("GET")
	challenge.HandleFunc("/{id}/progress", handlers.UpdateChallengeProgress).Methods("PATCH")
	challenge.HandleFunc("/{id}/detail", handlers.ChallengeDetails).Methods("GET")

	group := api.PathPrefix("/group").Subrouter()
	group.Use(jwtMiddleware(signingKey))
	group.HandleFunc("/create", handlers.CreateGroup).Methods("POST")
	group.HandleFunc("/{id}/join", handlers.JoinGroup).Methods("POST")

	return r
}

// Start initializes and starts the REST server. The function requires a
// serverURL (the URL where the server must be deployed) and the JWT
// signing key.
func Start(serverURL, signingKey string) error {
	r := NewRouter(signingKey)

	// Apply the CORS middleware to the router
	corsOrigins := gorillaHandlers.AllowedOrigins([]string{"*"})
	corsMethods := gorillaHandlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := gorillaHandlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	corsRouter := gorillaHandlers.CORS(corsOrigins, corsMethods, corsHeaders)(r)

	// Apply the logging middleware
	loggingRouter := gorillaHandlers.LoggingHandler(os.Stdout, corsRouter)

	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}

	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return server.ListenAndServe()
}
