// Package auth implements account management: registration, sign in/out,
// token refresh, and profile updates. Tokens are HS256 JWTs; the refresh
// token is persisted on the user document so it can be revoked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/lib/utils"
	"github.com/deentrack/deentrack/models"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"github.com/form3tech-oss/jwt-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// store is a global variable that holds an interface to the storage system (database).
var store storage.StorageInterface

// jwtSigningKey is a global variable that holds the key used for signing and verifying JWT tokens.
var jwtSigningKey string

// authTokenTTL and refreshTokenTTL are the lifetimes of the two token kinds.
const (
	authTokenTTL    = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// Init wires the auth service to a storage backend and sets the JWT
// signing key.
func Init(s storage.StorageInterface, signingKey string) {
	store = s
	jwtSigningKey = signingKey
}

// TokenPair is the auth/refresh token pair returned on sign up, sign in,
// and refresh.
type TokenPair struct {
	AuthToken    string `json:"auth_token"`
	RefreshToken string `json:"refresh_token"`
}

// CreateAuthToken creates a signed short-lived JWT carrying the user's ID.
func CreateAuthToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(authTokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))
	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// CreateRefreshToken creates a signed long-lived JWT carrying the user's ID.
func CreateRefreshToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(refreshTokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))
	if err != nil {
		return "", errors.New("failed to create refresh token")
	}

	return signedToken, nil
}

// CreateTokens creates an auth/refresh token pair and persists the refresh
// token on the user document, replacing any previous one.
func CreateTokens(ctx context.Context, userID string) (*TokenPair, error) {
	authToken, err := CreateAuthToken(userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := CreateRefreshToken(userID)
	if err != nil {
		return nil, err
	}

	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"refresh_token": refreshToken}}
	if _, err := store.UpdateUser(ctx, bson.M{"_id": objectID}, update); err != nil {
		return nil, err
	}

	return &TokenPair{AuthToken: authToken, RefreshToken: refreshToken}, nil
}

// SignUpInput carries the registration fields.
type SignUpInput struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new user.
//
// It validates the username length, email format, and password complexity,
// rejects duplicate emails and usernames, hashes the password, creates the
// user document with zeroed gamification state, and returns a token pair.
func SignUp(ctx context.Context, in SignUpInput) (*models.User, *TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < 2 {
		return nil, nil, apierr.Validation("username must be at least 2 characters")
	}

	if !utils.ValidateEmail(in.Email) {
		return nil, nil, apierr.Validation("invalid email format")
	}

	if !utils.ValidatePassword(in.Password) {
		return nil, nil, apierr.Validation("password must be at least 8 characters and contain both letters and numbers")
	}

	foundUser, err := store.FindUser(ctx, bson.M{"email": in.Email})
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, nil, err
	}
	if foundUser != nil {
		return nil, nil, apierr.Conflict("an account with this email already exists")
	}

	foundUser, err = store.FindUser(ctx, bson.M{"username": username})
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, nil, err
	}
	if foundUser != nil {
		return nil, nil, apierr.Conflict("username is taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username:     username,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        in.Email,
		PasswordHash: string(hashedPassword),
		DailyScore:   0,
		StreakCount:  0,
		XP:           0,
		Level:        1,
		Badges:       []string{},
		CreatedAt:    time.Now().UTC(),
	}

	created, err := store.AddUser(ctx, user)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return nil, nil, apierr.Conflict("an account with this email or username already exists")
		}
		return nil, nil, err
	}

	tokens, err := CreateTokens(ctx, created.ID.Hex())
	if err != nil {
		return nil, nil, err
	}

	return created, tokens, nil
}

// SignIn authenticates a user by email and password and returns a fresh
// token pair. Unknown email and wrong password are indistinguishable to
// the caller.
func SignIn(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	if !utils.ValidateEmail(email) {
		return nil, nil, apierr.Validation("invalid email format")
	}

	foundUser, err := store.FindUser(ctx, bson.M{"email": email})
	if err != nil {
		return nil, nil, apierr.Validation("authentication failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apierr.Validation("authentication failed")
	}

	tokens, err := CreateTokens(ctx, foundUser.ID.Hex())
	if err != nil {
		return nil, nil, err
	}

	return foundUser, tokens, nil
}

// SignOut revokes the user's stored refresh token.
func SignOut(ctx context.Context, userID primitive.ObjectID) error {
	update := bson.M{"$unset": bson.M{"refresh_token": ""}}
	if _, err := store.UpdateUser(ctx, bson.M{"_id": userID}, update); err != nil {
		if err == mongo.ErrNoDocuments {
			return apierr.NotFound("user not found")
		}
		return err
	}
	return nil
}

// RefreshToken validates a refresh token against both its signature and
// the copy stored on the user document, then rotates the pair. A token
// that was revoked by SignOut or superseded by a newer sign-in is
// rejected even if its signature is still valid.
func RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})

	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors == jwt.ValidationErrorExpired {
			return nil, apierr.Validation("expired refresh token")
		}
		return nil, apierr.Validation("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apierr.Validation("invalid refresh token")
	}

	userID, ok := claims["id"].(string)
	if !ok {
		return nil, apierr.Validation("invalid refresh token")
	}

	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apierr.Validation("invalid refresh token")
	}

	foundUser, err := store.FindUser(ctx, bson.M{"_id": objectID})
	if err != nil {
		return nil, apierr.Validation("invalid refresh token")
	}

	if foundUser.RefreshToken != refreshToken {
		return nil, apierr.Validation("refresh token has been revoked")
	}

	return CreateTokens(ctx, userID)
}

// ChangePassword verifies the current password and replaces it with the
// new one. The stored refresh token is revoked so existing sessions must
// re-authenticate.
func ChangePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return apierr.Validation("password must be at least 8 characters and contain both letters and numbers")
	}

	foundUser, err := store.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return apierr.NotFound("user not found")
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(currentPassword)); err != nil {
		return apierr.Validation("authentication failed")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set":   bson.M{"password_hash": string(hashedPassword)},
		"$unset": bson.M{"refresh_token": ""},
	}
	if _, err := store.UpdateUser(ctx, bson.M{"_id": userID}, update); err != nil {
		return err
	}
	return nil
}

// CurrentUser fetches the account document for the authenticated user.
func CurrentUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	foundUser, err := store.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("user not found")
		}
		return nil, err
	}
	return foundUser, nil
}

// UpdateAccountInput carries the optional profile fields. Empty fields
// are left unchanged.
type UpdateAccountInput struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// UpdateAccount updates the user's profile fields. Username and email
// changes are rejected if the new value is already in use.
func UpdateAccount(ctx context.Context, userID primitive.ObjectID, in UpdateAccountInput) (*models.User, error) {
	set := bson.M{}

	if in.Username != "" {
		if len(in.Username) < 2 {
			return nil, apierr.Validation("username must be at least 2 characters")
		}
		existing, err := store.FindUser(ctx, bson.M{"username": in.Username})
		if err != nil && err != mongo.ErrNoDocuments {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, apierr.Conflict("username already in use")
		}
		set["username"] = in.Username
	}

	if in.Email != "" {
		if !utils.ValidateEmail(in.Email) {
			return nil, apierr.Validation("invalid email format")
		}
		existing, err := store.FindUser(ctx, bson.M{"email": in.Email})
		if err != nil && err != mongo.ErrNoDocuments {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, apierr.Conflict("email already in use")
		}
		set["email"] = in.Email
	}

	if in.FullName != "" {
		set["full_name"] = strings.TrimSpace(in.FullName)
	}

	if in.Avatar != "" {
		set["avatar"] = in.Avatar
	}

	if len(set) == 0 {
		return nil, apierr.Validation("nothing to update")
	}

	updated, err := store.UpdateUser(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("user not found")
		}
		if storage.IsDuplicateKey(err) {
			return nil, apierr.Conflict("username or email already in use")
		}
		return nil, err
	}
	return updated, nil
}
