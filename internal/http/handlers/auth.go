package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/internal/account"
)

// Register creates an account from the register form
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	err := h.accounts.Register(r.Context(), r.FormValue("username"), r.FormValue("password"))
	switch {
	case err == nil:
		sess.Notice = "註冊成功，請登錄"
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, account.ErrDuplicateUser):
		h.renderState(w, http.StatusConflict, sess, "用戶名已存在")
	case errors.Is(err, account.ErrInvalidCredentials):
		h.renderState(w, http.StatusBadRequest, sess, "請輸入用戶名和密碼")
	default:
		h.logger.Error("registration failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Login authenticates the login form
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	err := h.accounts.Login(r.Context(), sess, r.FormValue("username"), r.FormValue("password"))
	switch {
	case err == nil:
		sess.Notice = "登錄成功"
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, account.ErrAuthFailure):
		h.renderState(w, http.StatusUnauthorized, sess, "用戶名或密碼錯誤")
	default:
		h.logger.Error("login failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Logout returns the session to the login page
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	h.accounts.Logout(sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
