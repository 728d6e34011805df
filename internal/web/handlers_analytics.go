// ABOUTME: Analytics page with platform totals and the viewer's own story performance
// ABOUTME: Gated on can_access_analytics

package web

import (
	"net/http"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/store"
)

const analyticsStoryLimit = 100

type analyticsView struct {
	Platform   *store.PlatformStats
	Stories    []*store.StorySummary
	Followers  int64
	TotalViews int64
	TotalLikes int64
}

func (a *Web) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := auth.FromContext(ctx)

	platform, err := a.store.PlatformStats(ctx)
	if err != nil {
		a.serverError(w, r, "failed to load platform stats", err)
		return
	}

	view := analyticsView{Platform: platform}
	if sess.IsRegistered() {
		stories, err := a.store.ListStoriesByAuthor(ctx, sess.User.Username, analyticsStoryLimit)
		if err != nil {
			a.serverError(w, r, "failed to list own stories", err)
			return
		}
		view.Stories = stories
		for _, s := range stories {
			view.TotalViews += s.Views
			view.TotalLikes += s.Likes
		}

		followers, err := a.ledger.Followers(ctx, sess.User.Username)
		if err != nil {
			a.logger.Warn("failed to count followers", "error", err)
		}
		view.Followers = followers
	}

	a.renderPage(w, http.StatusOK, "analytics", a.page(w, r, "Analytics", view))
}
