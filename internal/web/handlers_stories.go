// ABOUTME: Story browsing, detail, narration and interaction handlers
// ABOUTME: Views are counted once per viewer per window; likes and follows go through the ledger

package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/generate"
	"github.com/2389/cultural-storyteller/internal/ledger"
	"github.com/2389/cultural-storyteller/internal/search"
	"github.com/2389/cultural-storyteller/internal/store"
)

type homeView struct {
	Stories []*store.StorySummary
	Stats   *store.PlatformStats
}

type storiesView struct {
	Query         search.Query
	Results       []*store.Story
	Categories    []string
	Regions       []string
	Languages     []string
	AllCategories string
	AllRegions    string
	AllLanguages  string
}

type narrationView struct {
	Voice    string
	Speed    float64
	Handle   string
	URL      string
	Duration string
}

type storyView struct {
	Story     *store.Story
	Body      template.HTML
	AudioURL  string
	Summary   string
	Moral     string
	Comments  []*store.Comment
	Liked     bool
	Followers int64
	Voices    []generate.Voice
	Voice     string
	Speed     float64
	Narration *narrationView
}

func (a *Web) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stories, err := a.store.ListStories(ctx, homeStoryCount)
	if err != nil {
		a.serverError(w, r, "failed to list stories", err)
		return
	}
	stats, err := a.store.PlatformStats(ctx)
	if err != nil {
		a.logger.Warn("failed to load platform stats", "error", err)
	}

	data := a.page(w, r, "Home", homeView{Stories: stories, Stats: stats})
	a.renderPage(w, http.StatusOK, "home", data)
}

func (a *Web) handleStories(w http.ResponseWriter, r *http.Request) {
	q := search.ParseQuery(r.URL.Query())

	results, err := a.search.Search(r.Context(), q)
	if err != nil {
		a.serverError(w, r, "story search failed", err)
		return
	}

	view := storiesView{
		Query:         q,
		Results:       results,
		Categories:    a.config.Catalog.Categories,
		Regions:       a.config.Catalog.Regions,
		Languages:     a.config.Catalog.Languages,
		AllCategories: search.AllCategories,
		AllRegions:    search.AllRegions,
		AllLanguages:  search.AllLanguages,
	}
	a.renderPage(w, http.StatusOK, "stories", a.page(w, r, "Stories", view))
}

// loadStoryView gathers everything the story page shows. It does not count a view.
func (a *Web) loadStoryView(r *http.Request, id int64) (*storyView, error) {
	ctx := r.Context()

	story, err := a.store.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := a.store.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &storyView{
		Story:    story,
		Body:     a.render.Markdown(story.Content),
		AudioURL: mediaURL(story.AudioRef),
		Summary:  generate.Summarize(story.Content, generate.DefaultSummaryLength),
		Moral:    generate.MoralLesson(story.Content),
		Comments: comments,
		Voices:   generate.Voices(),
		Voice:    generate.DefaultVoice,
		Speed:    1.0,
	}

	if followers, err := a.ledger.Followers(ctx, story.Author); err == nil {
		view.Followers = followers
	} else if !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("failed to count followers", "author", story.Author, "error", err)
	}

	if sess := auth.FromContext(ctx); sess.IsRegistered() {
		liked, err := a.ledger.HasLiked(ctx, store.TargetStory, id, sess.UserID())
		if err != nil {
			a.logger.Warn("failed to check like", "story_id", id, "error", err)
		}
		view.Liked = liked
	}
	return view, nil
}

func (a *Web) handleStory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}

	if a.views.FirstView(viewerKey(r), id) {
		if err := a.store.IncrementViews(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("failed to count view", "story_id", id, "error", err)
		} else if err == nil {
			a.metrics.RecordStoryView()
		}
	}

	view, err := a.loadStoryView(r, id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to load story", err)
		return
	}

	a.renderPage(w, http.StatusOK, "story", a.page(w, r, view.Story.Title, view))
}

// handleNarrate synthesises speech for a story and shows it on the story page.
func (a *Web) handleNarrate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	if !a.checkForm(w, r) {
		return
	}

	view, err := a.loadStoryView(r, id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to load story", err)
		return
	}

	voice := r.FormValue("voice")
	if voice == "" {
		voice = generate.DefaultVoice
	}
	speed := 1.0
	if raw := strings.TrimSpace(r.FormValue("speed")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			a.renderStoryError(w, r, view, "Speed must be a number.")
			return
		}
		speed = parsed
	}
	view.Voice, view.Speed = voice, speed

	if !view.Story.Settings.VoiceEnabled {
		a.renderStoryError(w, r, view, "Narration is turned off for this story.")
		return
	}

	text := view.Story.Title + ". " + view.Story.Content
	handle, err := a.generator.Speech.Synthesize(r.Context(), text, voice, speed)
	if errors.Is(err, generate.ErrSynthesis) {
		a.renderStoryError(w, r, view, validationMessage(err))
		return
	}
	if err != nil {
		a.serverError(w, r, "speech synthesis failed", err)
		return
	}

	view.Narration = &narrationView{
		Voice:    voice,
		Speed:    speed,
		Handle:   string(handle),
		URL:      mediaURL(string(handle)),
		Duration: generate.EstimateDuration(text, voice, speed).Round(time.Second).String(),
	}
	a.renderPage(w, http.StatusOK, "story", a.page(w, r, view.Story.Title, view))
}

func (a *Web) renderStoryError(w http.ResponseWriter, r *http.Request, view *storyView, msg string) {
	data := a.page(w, r, view.Story.Title, view)
	data.Error = msg
	a.renderPage(w, http.StatusBadRequest, "story", data)
}

func (a *Web) handleStoryLike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	a.like(w, r, store.TargetStory, id, storyPath(id))
}

func (a *Web) handleCommentLike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Comment not found.")
		return
	}
	comment, err := a.store.GetComment(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Comment not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to load comment", err)
		return
	}
	a.like(w, r, store.TargetComment, id, storyPath(comment.StoryID))
}

// like records a like and redirects back with the outcome as a notice.
func (a *Web) like(w http.ResponseWriter, r *http.Request, targetType string, id int64, back string) {
	if !a.checkForm(w, r) {
		return
	}
	sess := auth.FromContext(r.Context())
	if !sess.IsRegistered() {
		a.renderError(w, r, http.StatusForbidden, "Create an account to like stories.")
		return
	}

	outcome, err := a.ledger.Like(r.Context(), targetType, id, sess.UserID())
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to record like", err)
		return
	}

	notice := "liked"
	if outcome == ledger.AlreadyLiked {
		notice = "already_liked"
	}
	http.Redirect(w, r, back+"?notice="+notice, http.StatusSeeOther)
}

func (a *Web) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	if !a.checkForm(w, r) {
		return
	}
	sess := auth.FromContext(r.Context())
	if !sess.IsRegistered() {
		a.renderError(w, r, http.StatusForbidden, "Create an account to comment.")
		return
	}

	story, err := a.store.GetStory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.renderError(w, r, http.StatusNotFound, "Story not found.")
		return
	}
	if err != nil {
		a.serverError(w, r, "failed to load story", err)
		return
	}
	if !story.Settings.CommentsEnabled {
		a.renderError(w, r, http.StatusForbidden, "Comments are turned off for this story.")
		return
	}

	text := strings.TrimSpace(r.FormValue("comment"))
	if text == "" || len([]rune(text)) > maxCommentLength {
		a.renderError(w, r, http.StatusBadRequest, "Comments must be between 1 and "+strconv.Itoa(maxCommentLength)+" characters.")
		return
	}

	if _, err := a.store.AddComment(r.Context(), &store.Comment{
		StoryID: id,
		UserID:  sess.UserID(),
		Text:    text,
		Type:    store.CommentText,
	}); err != nil {
		a.serverError(w, r, "failed to add comment", err)
		return
	}

	http.Redirect(w, r, storyPath(id)+"?notice=commented", http.StatusSeeOther)
}

func (a *Web) handleFollow(w http.ResponseWriter, r *http.Request) {
	if !a.checkForm(w, r) {
		return
	}
	sess := auth.FromContext(r.Context())
	if !sess.IsRegistered() {
		a.renderError(w, r, http.StatusForbidden, "Create an account to follow storytellers.")
		return
	}

	username := r.PathValue("username")
	outcome, err := a.ledger.Follow(r.Context(), sess.UserID(), username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.renderError(w, r, http.StatusNotFound, "No such storyteller.")
		return
	case errors.Is(err, ledger.ErrSelfFollow):
		a.renderError(w, r, http.StatusBadRequest, "You cannot follow yourself.")
		return
	case err != nil:
		a.serverError(w, r, "failed to record follow", err)
		return
	}

	notice := "followed"
	if outcome == ledger.AlreadyFollowing {
		notice = "already_following"
	}
	back := "/stories?notice=" + notice
	if ref := localReferer(r); ref != "" {
		back = ref + "?notice=" + notice
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// localReferer returns the same-host path of the Referer header, if any.
func localReferer(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return ""
	}
	if ref.Host != "" && ref.Host != r.Host {
		return ""
	}
	return ref.Path
}

// mediaURL maps a stored media reference to a browser URL. Absolute URLs and
// non-file handles pass through or map to nothing.
func mediaURL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "/"):
		return ref
	case strings.Contains(ref, "://"):
		return ""
	default:
		return "/media/" + ref
	}
}
