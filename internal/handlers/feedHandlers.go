package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mirror/internal/services"
	"mirror/internal/utils"
)

type FeedHandler struct {
	feedService services.FeedService
}

func NewFeedHandler(feedService services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

func (h *FeedHandler) ExploreVideos(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feedService.ExploreVideos(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, posts)
}

func (h *FeedHandler) FeedImages(w http.ResponseWriter, r *http.Request) {
	startFrom, err := strconv.Atoi(mux.Vars(r)["startFrom"])
	if err != nil {
		utils.SendJSONError(w, "startFrom must be an integer", http.StatusBadRequest)
		return
	}

	posts, err := h.feedService.FeedImages(r.Context(), startFrom)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, posts)
}
