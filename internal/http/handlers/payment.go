package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/internal/account"
	"github.com/menta2k/image-assistant/internal/payment"
)

// Subscribe opens the payment form
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	if err := h.accounts.RequestSubscription(sess); err != nil {
		h.logger.Debug("subscribe ignored", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Payment submits the card form
func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	form := payment.Form{
		CardNumber: r.FormValue("card_number"),
		Expiry:     r.FormValue("expiry"),
		CVC:        r.FormValue("cvc"),
	}

	_, err := h.accounts.SubmitPayment(r.Context(), sess, form)
	switch {
	case err == nil:
		data := h.baseData(sess)
		data.Title = "訂閱成功"
		h.render(w, http.StatusOK, "success", data)
	case errors.Is(err, payment.ErrMissingPaymentField):
		h.renderState(w, http.StatusBadRequest, sess, "請填寫所有信用卡信息")
	case errors.Is(err, account.ErrNotLoggedIn), errors.Is(err, account.ErrInvalidTransition):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.logger.Error("payment failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// CancelPayment leaves the payment form
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	if err := h.accounts.CancelPayment(sess); err != nil {
		h.logger.Debug("cancel payment ignored", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CancelSubscription turns the subscription off
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	err := h.accounts.CancelSubscription(r.Context(), sess)
	switch {
	case err == nil:
		sess.Notice = "您已取消訂閱，現為免費用戶"
	case errors.Is(err, account.ErrNotLoggedIn), errors.Is(err, account.ErrInvalidTransition):
	default:
		h.logger.Error("cancel subscription failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
