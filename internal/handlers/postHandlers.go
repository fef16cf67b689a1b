package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"mirror/internal/models"
	"mirror/internal/services"
	"mirror/internal/utils"
)

const (
	maxUploadBytes    = 100 << 20
	multipartMemBytes = 32 << 20
)

type PostHandler struct {
	postService services.PostService
}

func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// Share accepts a multipart form with username, text, type and the media file.
func (h *PostHandler) Share(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemBytes); err != nil {
		log.Warn().Err(err).Msg("Invalid multipart body for Share")
		utils.SendJSONError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	username, ok := utils.ActingUsername(w, r, r.FormValue("username"))
	if !ok {
		return
	}

	post := models.NewPost{
		Username: username,
		Text:     r.FormValue("text"),
		Type:     r.FormValue("type"),
	}

	var media io.Reader
	file, header, err := r.FormFile("media")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		utils.SendJSONError(w, "invalid media file: "+err.Error(), http.StatusBadRequest)
		return
	default:
		defer file.Close()
		media = file
		post.Filename = header.Filename
	}

	mediaPath, err := h.postService.SharePost(r.Context(), post, media)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Post shared successfully",
		"mediaPath": mediaPath,
	})
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	var req models.LikeRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		log.Warn().Err(err).Msg("Invalid request body for Like")
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	username, ok := utils.ActingUsername(w, r, req.Username)
	if !ok {
		return
	}

	result, err := h.postService.LikePost(r.Context(), username, req.MediaPath)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Like updated successfully",
		"mediaPath": result.MediaPath,
		"liked":     result.Liked,
		"likeCount": result.LikeCount,
	})
}

// AddComment appends the comment payload as sent. When the payload names an author in its
// first element, that author must be the session user.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req models.AddCommentRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		log.Warn().Err(err).Msg("Invalid request body for AddComment")
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var author string
	if len(req.Comment) > 1 {
		author = req.Comment[0]
	}
	if _, ok := utils.ActingUsername(w, r, author); !ok {
		return
	}

	if err := h.postService.AddComment(r.Context(), req.MediaPath, req.Comment); err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, message("Comment added successfully"))
}

func (h *PostHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["path"]

	f, err := h.postService.OpenFile(name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Failed to stat media file")
		utils.SendJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.ServeContent(w, r, name, info.ModTime(), f)
}
