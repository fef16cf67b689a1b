package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"mirror/internal/models"
	"mirror/internal/services"
	"mirror/internal/utils"
)

type UserHandler struct {
	userService services.UserService
	otpService  services.OTPService
}

func NewUserHandler(userService services.UserService, otpService services.OTPService) *UserHandler {
	return &UserHandler{userService: userService, otpService: otpService}
}

func (u *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if err := utils.DecodeAndValidate(r, &creds); err != nil {
		log.Warn().Err(err).Msg("Invalid request body for Login")
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := u.userService.Login(r.Context(), &creds)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, session)
}

func (u *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.Signup
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		log.Warn().Err(err).Msg("Invalid user data input for Signup")
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := u.userService.Signup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, session)
}

func (u *UserHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	var req models.UsernameCheck
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	available, err := u.userService.CheckUsername(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (u *UserHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req models.EmailCheck
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	available, err := u.userService.CheckEmail(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (u *UserHandler) SendResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordRecoveryRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := u.otpService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, message("Verification code sent"))
}

func (u *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := u.otpService.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, message("Password updated successfully"))
}
