// ABOUTME: Story authoring handlers: manual upload, optional narration audio and AI drafts
// ABOUTME: Story input validation is shared with the JSON API

package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/generate"
	"github.com/2389/cultural-storyteller/internal/store"
)

const (
	generatedImageCount = 2
	maxTitleLength      = 200
	maxDescription      = 1000
	maxTags             = 20
	uploadsDir          = "uploads"
)

// errInvalidStory wraps every story validation failure.
var errInvalidStory = errors.New("invalid story")

// Audio upload failures shown to the author.
var (
	errAudioRead  = errors.New("could not read the audio file")
	errAudioType  = errors.New("audio must be an mp3, wav, ogg, m4a or webm file")
	errAudioStore = errors.New("could not store the audio file")
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".webm": true,
}

// storyInput is the author-supplied part of a story.
type storyInput struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Content     string               `json:"content"`
	Category    string               `json:"category"`
	Region      string               `json:"region"`
	Language    string               `json:"language"`
	Duration    string               `json:"duration"`
	Tags        []string             `json:"tags"`
	Images      []string             `json:"images"`
	Settings    *store.StorySettings `json:"settings"`
}

// buildStory validates in and turns it into a story by author.
func (a *Web) buildStory(in storyInput, author string) (*store.Story, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)

	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", errInvalidStory)
	case len([]rune(title)) > maxTitleLength:
		return nil, fmt.Errorf("%w: title must be at most %d characters", errInvalidStory, maxTitleLength)
	case content == "":
		return nil, fmt.Errorf("%w: story content is required", errInvalidStory)
	case a.config.MaxStoryLength > 0 && len([]rune(content)) > a.config.MaxStoryLength:
		return nil, fmt.Errorf("%w: story must be at most %d characters", errInvalidStory, a.config.MaxStoryLength)
	case len([]rune(in.Description)) > maxDescription:
		return nil, fmt.Errorf("%w: description must be at most %d characters", errInvalidStory, maxDescription)
	}

	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = a.config.DefaultLanguage
	}
	fields := []struct {
		name, value string
		allowed     []string
	}{
		{"category", strings.TrimSpace(in.Category), a.config.Catalog.Categories},
		{"region", strings.TrimSpace(in.Region), a.config.Catalog.Regions},
		{"language", language, a.config.Catalog.Languages},
		{"duration", strings.TrimSpace(in.Duration), a.config.Catalog.Durations},
	}
	for _, f := range fields {
		if f.value != "" && len(f.allowed) > 0 && !slices.Contains(f.allowed, f.value) {
			return nil, fmt.Errorf("%w: unknown %s %q", errInvalidStory, f.name, f.value)
		}
	}

	tags := cleanTags(in.Tags)
	if len(tags) == 0 {
		tags = generate.SuggestTags(content, in.Category+" "+in.Region)
	}

	settings := store.DefaultStorySettings()
	if in.Settings != nil {
		settings = *in.Settings
	}

	return &store.Story{
		Title:       title,
		Author:      author,
		Content:     content,
		Description: strings.TrimSpace(in.Description),
		Category:    fields[0].value,
		Region:      fields[1].value,
		Language:    language,
		Duration:    fields[3].value,
		Tags:        tags,
		Images:      in.Images,
		Settings:    settings,
	}, nil
}

// cleanTags trims, lowercases and de-duplicates tags, dropping empties.
func cleanTags(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// uploadForm mirrors the fields of the upload page.
type uploadForm struct {
	Title       string
	Description string
	Content     string
	Category    string
	Region      string
	Language    string
	Duration    string
	Tags        string
	Images      []string
	Settings    store.StorySettings

	Prompt    string
	StoryType string
	Length    string
	Style     string
	Context   string
}

type uploadView struct {
	Form           uploadForm
	Generated      bool
	CanUploadAudio bool
	Categories     []string
	Regions        []string
	Languages      []string
	Durations      []string
	StoryTypes     []string
	Lengths        []string
	Styles         []string
}

func (a *Web) uploadView(r *http.Request, form uploadForm) uploadView {
	sess := auth.FromContext(r.Context())
	return uploadView{
		Form:           form,
		CanUploadAudio: sess.Can(a.policy, auth.CapUploadContent) && a.config.MediaDir != "",
		Categories:     a.config.Catalog.Categories,
		Regions:        a.config.Catalog.Regions,
		Languages:      a.config.Catalog.Languages,
		Durations:      a.config.Catalog.Durations,
		StoryTypes:     a.config.Catalog.StoryTypes,
		Lengths:        a.config.Catalog.Lengths,
		Styles:         a.config.Catalog.Styles,
	}
}

func (a *Web) renderUpload(w http.ResponseWriter, r *http.Request, status int, view uploadView, msg string) {
	data := a.page(w, r, "Create a Story", view)
	data.Error = msg
	a.renderPage(w, status, "upload", data)
}

func (a *Web) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	form := uploadForm{
		Language: a.config.DefaultLanguage,
		Settings: store.DefaultStorySettings(),
	}
	a.renderUpload(w, r, http.StatusOK, a.uploadView(r, form), "")
}

// formFromRequest reads the story fields of a parsed upload form.
func formFromRequest(r *http.Request) uploadForm {
	return uploadForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Content:     r.FormValue("content"),
		Category:    r.FormValue("category"),
		Region:      r.FormValue("region"),
		Language:    r.FormValue("language"),
		Duration:    r.FormValue("duration"),
		Tags:        r.FormValue("tags"),
		Images:      r.Form["images"],
		Settings: store.StorySettings{
			VoiceEnabled:    r.FormValue("voice_enabled") != "",
			CommentsEnabled: r.FormValue("comments_enabled") != "",
			Public:          r.FormValue("public") != "",
			Remixable:       r.FormValue("remixable") != "",
			AdultContent:    r.FormValue("adult_content") != "",
			Educational:     r.FormValue("educational") != "",
		},
	}
}

func (a *Web) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if !sess.IsRegistered() {
		a.renderError(w, r, http.StatusForbidden, "Create an account to publish stories.")
		return
	}

	if a.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadBytes)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			a.renderError(w, r, http.StatusBadRequest, "Upload too large or malformed.")
			return
		}
	}
	if !a.checkForm(w, r) {
		return
	}

	form := formFromRequest(r)
	view := a.uploadView(r, form)

	story, err := a.buildStory(storyInput{
		Title:       form.Title,
		Description: form.Description,
		Content:     form.Content,
		Category:    form.Category,
		Region:      form.Region,
		Language:    form.Language,
		Duration:    form.Duration,
		Tags:        strings.Split(form.Tags, ","),
		Images:      form.Images,
		Settings:    &form.Settings,
	}, sess.User.Username)
	if err != nil {
		a.renderUpload(w, r, http.StatusBadRequest, view, validationMessage(err))
		return
	}

	if view.CanUploadAudio {
		ref, err := a.saveAudioUpload(r)
		if err != nil {
			a.renderUpload(w, r, http.StatusBadRequest, view, validationMessage(err))
			return
		}
		story.AudioRef = ref
	}

	id, err := a.store.SaveStory(r.Context(), story)
	if err != nil {
		a.removeUpload(story.AudioRef)
		a.serverError(w, r, "failed to save story", err)
		return
	}

	a.metrics.RecordStoryCreated()
	a.logger.Info("story published", "story_id", id, "author", story.Author)
	http.Redirect(w, r, storyPath(id)+"?notice=published", http.StatusSeeOther)
}

// saveAudioUpload stores an optional "audio" file under the media directory
// and returns its media-relative reference, or "" when no file was sent.
func (a *Web) saveAudioUpload(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errAudioRead
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !audioExtensions[ext] {
		return "", errAudioType
	}

	dir := filepath.Join(a.config.MediaDir, uploadsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Error("failed to create upload directory", "error", err)
		return "", errAudioStore
	}

	name := uuid.NewString() + ext
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		a.logger.Error("failed to create upload file", "error", err)
		return "", errAudioStore
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		a.logger.Error("failed to write upload file", "error", err)
		_ = os.Remove(out.Name())
		return "", errAudioStore
	}
	return uploadsDir + "/" + name, nil
}

// removeUpload deletes a file saved by saveAudioUpload whose story was never stored.
func (a *Web) removeUpload(ref string) {
	if ref == "" {
		return
	}
	if err := os.Remove(filepath.Join(a.config.MediaDir, filepath.FromSlash(ref))); err != nil {
		a.logger.Warn("failed to remove orphaned upload", "ref", ref, "error", err)
	}
}

// handleGenerate drafts a story with the content generator and prefills the form.
func (a *Web) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !a.checkForm(w, r) {
		return
	}

	form := uploadForm{
		Prompt:    strings.TrimSpace(r.FormValue("prompt")),
		StoryType: r.FormValue("story_type"),
		Length:    r.FormValue("length"),
		Style:     r.FormValue("style"),
		Context:   strings.TrimSpace(r.FormValue("context")),
		Language:  a.config.DefaultLanguage,
		Settings:  store.DefaultStorySettings(),
	}

	draft, err := a.generator.Text.Generate(r.Context(), generate.Prompt{
		Text:    form.Prompt,
		Type:    form.StoryType,
		Length:  form.Length,
		Style:   form.Style,
		Context: form.Context,
	})
	if err != nil {
		a.logger.Warn("story generation failed", "error", err)
		a.renderUpload(w, r, http.StatusBadGateway, a.uploadView(r, form), "The story generator is unavailable. Please try again or write your own.")
		return
	}

	form.Title = draft.Title
	form.Description = draft.Description
	form.Content = draft.Content
	form.Tags = strings.Join(generate.SuggestTags(draft.Content, form.Context), ", ")

	images, err := a.generator.Images.Generate(r.Context(), draft.Title, generatedImageCount)
	if err != nil {
		a.logger.Warn("illustration failed", "error", err)
	}
	form.Images = images

	view := a.uploadView(r, form)
	view.Generated = true
	a.renderUpload(w, r, http.StatusOK, view, "")
}
