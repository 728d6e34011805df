// ABOUTME: Template rendering for UI pages and Markdown story rendering
// ABOUTME: Story Markdown goes through goldmark then a bluemonday UGC policy

package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/cultural-storyteller/internal/auth"
)

var pageNames = []string{
	"home", "login", "register", "stories", "story", "upload", "rooms", "analytics", "error",
}

type renderer struct {
	pages    map[string]*template.Template
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"roleLabel": func(r auth.Role) string { return r.Label() },
	"selected":  func(current, option string) bool { return current == option },
}

func newRenderer() (*renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	policy := bluemonday.UGCPolicy()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &renderer{
		pages:    pages,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer)),
		policy:   policy,
	}, nil
}

// Markdown converts story Markdown to sanitised HTML.
func (rn *renderer) Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := rn.markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(rn.policy.Sanitize(buf.String()))
}

// pageData is shared by every full page.
type pageData struct {
	Title     string
	AppName   string
	Session   *auth.Session
	Caps      map[string]bool
	CSRFToken string
	Error     string
	Notice    string
	Data      any
}

// page prepares the common fields for a page render.
func (a *Web) page(w http.ResponseWriter, r *http.Request, title string, data any) pageData {
	_, csrf := a.ensureCSRFToken(w, r)
	sess := auth.FromContext(r.Context())

	caps := make(map[string]bool)
	for _, c := range auth.AllCapabilities() {
		caps[string(c)] = sess.Can(a.policy, c)
	}

	return pageData{
		Title:     title,
		AppName:   a.config.AppName,
		Session:   sess,
		Caps:      caps,
		CSRFToken: csrf,
		Notice:    noticeText(r.URL.Query().Get("notice")),
		Data:      data,
	}
}

// renderPage executes the named page template with status.
func (a *Web) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := a.render.pages[name]
	if !ok {
		a.logger.Error("unknown template", "name", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		a.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError renders the error page with a user-facing message.
func (a *Web) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := a.page(w, r, http.StatusText(status), nil)
	data.Error = message
	a.renderPage(w, status, "error", data)
}

// serverError logs err and renders a generic 500 page.
func (a *Web) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.Error(msg, "error", err, "path", r.URL.Path)
	a.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

var notices = map[string]string{
	"registered":        "Account created. Please log in.",
	"liked":             "Thanks for the like!",
	"already_liked":     "You have already liked this.",
	"followed":          "You are now following this storyteller.",
	"already_following": "You already follow this storyteller.",
	"commented":         "Comment posted.",
	"joined":            "You joined the room.",
	"left":              "You left the room.",
	"not_in_room":       "You are not in that room.",
	"ended":             "Room ended.",
	"room_created":      "Room created.",
	"published":         "Story published.",
}

func noticeText(key string) string {
	return notices[key]
}
