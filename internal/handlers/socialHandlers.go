package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"mirror/internal/models"
	"mirror/internal/services"
	"mirror/internal/utils"
)

type SocialHandler struct {
	socialService services.SocialService
}

func NewSocialHandler(socialService services.SocialService) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	var req models.FollowRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		log.Warn().Err(err).Msg("Invalid request body for Follow")
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	currentUser, ok := utils.ActingUsername(w, r, req.CurrentUser)
	if !ok {
		return
	}

	count, err := h.socialService.Follow(r.Context(), currentUser, req.TargetUser)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]int{"followingCount": count})
}

func (h *SocialHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	profile, err := h.socialService.GetProfile(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, profile)
}
