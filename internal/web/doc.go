// Package web serves the storyteller HTML pages and the JSON API.
//
// # Sessions
//
// Browser requests carry a session cookie resolved into an auth.Session by
// Middleware. Guests get a session without a user. Every state-changing form
// must echo the CSRF cookie in its csrf_token field.
//
// # Routes
//
// Pages are gated by capability, not by role name:
//
//   - /stories, /stories/{id}: Browse, search, read, like, comment and narrate
//   - /upload: Publish stories, optionally with an audio file or an AI draft
//   - /rooms: Create, join, leave and end rooms
//   - /analytics: Platform totals for storytellers
//   - /media/: Uploaded files, without directory listings
//
// # API
//
// /api/v1 mirrors the story, room and stats views as JSON. Clients exchange
// credentials for a bearer JWT at POST /api/v1/token. Login, registration and
// token requests are rate limited per client address.
package web
