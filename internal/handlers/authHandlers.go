package handlers

import (
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/markbates/goth/gothic"
	"github.com/rs/zerolog/log"

	"mirror/internal/services"
	"mirror/internal/utils"
)

type AuthHandler struct {
	authService services.AuthService
	providers   []string
}

func NewAuthHandler(authService services.AuthService, providers []string) *AuthHandler {
	return &AuthHandler{authService: authService, providers: providers}
}

func (a *AuthHandler) knownProvider(w http.ResponseWriter, r *http.Request) bool {
	provider := mux.Vars(r)["provider"]
	if !slices.Contains(a.providers, provider) {
		log.Warn().Str("provider", provider).Msg("Unknown or unconfigured OAuth provider")
		utils.SendJSONError(w, "unknown provider", http.StatusNotFound)
		return false
	}
	return true
}

func (a *AuthHandler) ProviderAuth(w http.ResponseWriter, r *http.Request) {
	if !a.knownProvider(w, r) {
		return
	}

	log.Info().Str("provider", mux.Vars(r)["provider"]).Msg("Initiating authentication with provider")
	gothic.BeginAuthHandler(w, r)
}

// ProviderCallback finishes the provider handshake and answers with a session, also
// setting it as an HttpOnly cookie for browser clients.
func (a *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if !a.knownProvider(w, r) {
		return
	}

	providerUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("Error completing user authentication")
		utils.SendJSONError(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	session, err := a.authService.HandleLogin(r.Context(), providerUser)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    session.Token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("email", providerUser.Email).Str("username", session.Username).Msg("OAuth login completed")

	utils.RespondWithJSON(w, http.StatusOK, session)
}
