package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	imageassistant "github.com/menta2k/image-assistant"
	"github.com/menta2k/image-assistant/internal/session"
	"github.com/menta2k/image-assistant/pkg/analyzer"
	"github.com/menta2k/image-assistant/pkg/quota"
	"github.com/menta2k/image-assistant/pkg/types"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

const maxThumbnail = 512

// Analyze runs the selected operation on the uploaded image and redirects
// to the new history entry
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	if !sess.LoggedIn {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !h.assistant.CanAnalyze(sess) {
		h.renderState(w, http.StatusForbidden, sess, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderState(w, http.StatusRequestEntityTooLarge, sess, "圖片檔案過大")
			return
		}
		h.renderState(w, http.StatusBadRequest, sess, "請選擇要上傳的圖片")
		return
	}

	op, err := types.ParseOperation(r.FormValue("operation"))
	if err != nil {
		h.renderState(w, http.StatusBadRequest, sess, "未知的辨識類型")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.renderState(w, http.StatusBadRequest, sess, "請選擇要上傳的圖片")
		return
	}
	defer file.Close()

	if err := h.assistant.CheckUpload(header.Filename); err != nil {
		h.renderState(w, http.StatusBadRequest, sess, "不支援的圖片格式")
		return
	}

	img, err := h.assistant.LoadImage(file)
	switch {
	case errors.Is(err, analyzer.ErrTooLarge):
		h.renderState(w, http.StatusRequestEntityTooLarge, sess, "圖片檔案過大")
		return
	case err != nil:
		h.logger.Info("rejected upload", zap.String("file", header.Filename), zap.Error(err))
		h.renderState(w, http.StatusBadRequest, sess, "無法讀取圖片")
		return
	}

	_, err = h.assistant.Analyze(r.Context(), sess, img, op)
	if err != nil {
		var exceeded quota.ExceededError
		if errors.As(err, &exceeded) {
			h.renderState(w, http.StatusForbidden, sess, "")
			return
		}
		h.logger.Error("analysis failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/history/%d", sess.History().Len()), http.StatusSeeOther)
}

// HistoryEntry renders one stored analysis
func (h *Handler) HistoryEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	if !sess.LoggedIn {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	index, entry, ok := historyAt(sess, mux.Vars(r)["index"])
	if !ok {
		http.NotFound(w, r)
		return
	}

	data := h.baseData(sess)
	data.Entry = &entryView{
		Index:       index,
		Result:      resultLines(entry.Result),
		Description: entry.Description,
	}
	h.render(w, http.StatusOK, "main", data)
}

// HistoryImage serves the stored JPEG of an entry. A thumb query parameter
// returns a square thumbnail of that size instead.
func (h *Handler) HistoryImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	if !sess.LoggedIn {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	_, entry, ok := historyAt(sess, mux.Vars(r)["index"])
	if !ok {
		http.NotFound(w, r)
		return
	}

	body := entry.Image
	if v := r.URL.Query().Get("thumb"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > maxThumbnail {
			http.Error(w, "Invalid thumbnail size", http.StatusBadRequest)
			return
		}
		body, err = h.thumbnail(entry, size)
		if err != nil {
			h.logger.Error("failed to build thumbnail", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(body)
}

// thumbnail serves the preview cached on the entry, or builds one for other sizes
func (h *Handler) thumbnail(entry types.HistoryEntry, size int) ([]byte, error) {
	if size == imageassistant.ThumbnailSize && len(entry.Thumbnail) > 0 {
		return entry.Thumbnail, nil
	}
	img, _, err := h.processor.DecodeImage(entry.Image)
	if err != nil {
		return nil, err
	}
	return h.processor.EncodeJPEG(h.processor.Thumbnail(img, size), 0)
}

// historyAt resolves a 1-based index from the URL
func historyAt(sess *session.Session, raw string) (int, types.HistoryEntry, bool) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.HistoryEntry{}, false
	}
	entry, ok := sess.History().At(index - 1)
	return index, entry, ok
}
