package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	imageassistant "github.com/menta2k/image-assistant"
	"github.com/menta2k/image-assistant/internal/account"
	"github.com/menta2k/image-assistant/internal/session"
	"github.com/menta2k/image-assistant/pkg/processing"
	"github.com/menta2k/image-assistant/pkg/quota"
	"github.com/menta2k/image-assistant/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

const appTitle = "圖片辨識助手"

// Options configures a Handler
type Options struct {
	MaxUploadBytes   int64
	SupportedFormats []string
}

// Handler serves the web UI
type Handler struct {
	assistant *imageassistant.Assistant
	accounts  *account.Service
	sessions  *session.Manager
	processor *processing.Processor
	pages     map[string]*template.Template
	opts      Options
	logger    *zap.Logger
}

// New parses the page templates and creates a handler
func New(assistant *imageassistant.Assistant, accounts *account.Service, sessions *session.Manager, opts Options, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	pages := map[string][]string{
		"login":   {"templates/layout.html", "templates/login.html"},
		"main":    {"templates/layout.html", "templates/sidebar.html", "templates/main.html"},
		"payment": {"templates/layout.html", "templates/sidebar.html", "templates/payment.html"},
		"success": {"templates/layout.html", "templates/sidebar.html", "templates/success.html"},
	}

	h := &Handler{
		assistant: assistant,
		accounts:  accounts,
		sessions:  sessions,
		processor: processing.NewProcessor(),
		pages:     make(map[string]*template.Template, len(pages)),
		opts:      opts,
		logger:    logger,
	}
	for name, files := range pages {
		t, err := template.ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		h.pages[name] = t
	}
	return h, nil
}

type operationOption struct {
	Value string
	Label string
}

type historyLink struct {
	Index int
	Label string
}

type entryView struct {
	Index       int
	Result      []string
	Description string
}

type pageData struct {
	Title      string
	Notice     string
	Error      string
	User       string
	UsageText  string
	ModelName  string
	Subscribed bool
	Blocked    bool
	Accept     string
	Operations []operationOption
	History    []historyLink
	ThumbSize  int
	Entry      *entryView
}

// session loads and locks the caller's session. The caller must Unlock it.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(w, r)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	sess.Lock()
	return sess, true
}

func (h *Handler) baseData(sess *session.Session) pageData {
	data := pageData{
		Title:      appTitle,
		Notice:     sess.TakeNotice(),
		User:       sess.CurrentUser,
		Subscribed: sess.SubscriptionStatus,
	}
	if !sess.LoggedIn {
		data.Title = "歡迎使用" + appTitle
		return data
	}

	data.UsageText = usageText(sess)
	data.ModelName = h.assistant.ModelName(sess)
	data.Blocked = !h.assistant.CanAnalyze(sess)

	accept := make([]string, 0, len(h.opts.SupportedFormats))
	for _, f := range h.opts.SupportedFormats {
		accept = append(accept, "."+f)
	}
	data.Accept = strings.Join(accept, ",")

	for _, op := range types.Operations() {
		data.Operations = append(data.Operations, operationOption{Value: string(op), Label: op.Label()})
	}
	data.ThumbSize = imageassistant.ThumbnailSize
	for i, e := range sess.History().Entries() {
		data.History = append(data.History, historyLink{Index: i + 1, Label: e.Operation.Label()})
	}
	return data
}

func usageText(sess *session.Session) string {
	if sess.SubscriptionStatus {
		return fmt.Sprintf("已使用 %d 次，訂閱用戶無限制", sess.UsageCount)
	}
	return fmt.Sprintf("已使用 %d 次, 免費使用上限 %d 次（剩餘 %d 次）",
		sess.UsageCount, quota.Limit, quota.Remaining(sess.UsageCount, false))
}

// resultLines splits a result on its line breaks so each line is escaped
// on its own when rendered
func resultLines(result string) []string {
	return strings.Split(strings.TrimSuffix(result, "<br>"), "<br>")
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Index renders the page matching the session's state
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	defer sess.Unlock()

	h.renderState(w, http.StatusOK, sess, "")
}

func (h *Handler) renderState(w http.ResponseWriter, status int, sess *session.Session, errMsg string) {
	data := h.baseData(sess)
	data.Error = errMsg

	switch account.StateOf(sess) {
	case account.LoggedOut:
		h.render(w, status, "login", data)
	case account.PaymentPending:
		data.Title = "訂閱付款"
		h.render(w, status, "payment", data)
	default:
		h.render(w, status, "main", data)
	}
}

// Healthz reports liveness
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok %s sessions=%d\n", imageassistant.GetVersion(), h.sessions.Len())
}
