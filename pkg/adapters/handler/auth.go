package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthHandler signs report admins in with Google and issues the auth_token cookie.
type AuthHandler struct {
	oauthConfig   *oauth2.Config
	jwtSecret     []byte
	frontendURL   string
	allowedEmails []string
	isProduction  bool
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:     []byte(cfg.JWTSecret),
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := h.generateStateOauthCookie(w)
	url := h.oauthConfig.AuthCodeURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	oauthState, err := r.Cookie("oauthstate")
	if err != nil {
		log.Warn().Err(err).Msg("oauth callback without state cookie")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		log.Warn().Msg("oauth callback with mismatched state")
		fail(w, r, http.StatusBadRequest, "Invalid OAuth state.")
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Error().Err(err).Msg("oauth code exchange failed")
		fail(w, r, http.StatusInternalServerError, "Code exchange failed.")
		return
	}

	response, err := h.oauthConfig.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		log.Error().Err(err).Msg("fetching google user info failed")
		fail(w, r, http.StatusInternalServerError, "Failed getting user info.")
		return
	}
	defer response.Body.Close()

	var googleUser GoogleUser
	if err := json.NewDecoder(response.Body).Decode(&googleUser); err != nil {
		log.Error().Err(err).Msg("decoding google user info failed")
		fail(w, r, http.StatusInternalServerError, "Failed decoding user info.")
		return
	}

	if !h.emailAllowed(googleUser.Email) {
		log.Warn().Str("email", googleUser.Email).Msg("email not in allowlist")
		fail(w, r, http.StatusForbidden, "Access denied: your email is not in the allowlist.")
		return
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	tokenString, err := h.signSession(googleUser.Email, expirationTime)
	if err != nil {
		log.Error().Err(err).Msg("signing session token failed")
		fail(w, r, http.StatusInternalServerError, "Internal server error.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    tokenString,
		Expires:  expirationTime,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Str("email", googleUser.Email).Msg("admin signed in")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// An empty allowlist admits any Google account.
func (h *AuthHandler) emailAllowed(email string) bool {
	return len(h.allowedEmails) == 0 || slices.Contains(h.allowedEmails, email)
}

func (h *AuthHandler) signSession(email string, expires time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   email,
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}
