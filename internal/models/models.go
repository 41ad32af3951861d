// Package models defines the records the integration layer reads and writes:
// per-user provider credentials, classes and the tasks imported into them.
package models

import "time"

// Credentials is the per-user credential record, one row per user covering
// both connected providers. The Google pair is refreshable; the Canvas pair
// is a tenant domain plus a static API key with no refresh semantics.
type Credentials struct {
	UserID string `json:"user_id"`

	// Google OAuth2 delegated credential
	GoogleAccessToken  string     `json:"google_access_token,omitempty"`
	GoogleRefreshToken string     `json:"google_refresh_token,omitempty"`
	GoogleTokenExpiry  *time.Time `json:"google_token_expiry,omitempty"`
	// GoogleReauthRequired is set when the provider reports the grant revoked;
	// cleared on the next successful link or refresh
	GoogleReauthRequired bool `json:"google_reauth_required,omitempty"`

	// Canvas static credential
	CanvasDomain      string `json:"canvas_domain,omitempty"`
	CanvasAccessToken string `json:"canvas_access_token,omitempty"`
}

// GoogleLinked reports whether the user has a refreshable Google credential
// on file. Without a refresh token the user is unlinked regardless of any
// leftover access token.
func (c *Credentials) GoogleLinked() bool {
	return c != nil && c.GoogleRefreshToken != ""
}

// CanvasLinked reports whether the user has a Canvas domain and API key on file.
func (c *Credentials) CanvasLinked() bool {
	return c != nil && c.CanvasDomain != "" && c.CanvasAccessToken != ""
}

// GoogleTokenValid reports whether the stored access token is still usable
// with the given safety margin. An absent expiry is treated as invalid.
func (c *Credentials) GoogleTokenValid(margin time.Duration) bool {
	if c == nil || c.GoogleAccessToken == "" || c.GoogleTokenExpiry == nil {
		return false
	}
	return time.Now().Add(margin).Before(*c.GoogleTokenExpiry)
}

// Class is a user-owned container that imported assignments land in.
type Class struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	Instructor string `json:"instructor,omitempty"`
	// CanvasCourseID links the class to its remote course, when imported
	CanvasCourseID string    `json:"canvas_course_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Task is a local row created from a remote assignment. Keyed by
// (ClassID, UserID, RemoteID): at most one task exists per key, enforced by
// the importer independent of any storage uniqueness constraint.
type Task struct {
	ID          string     `json:"id"`
	ClassID     string     `json:"class_id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	// RemoteID is the provider-assigned assignment identifier
	RemoteID  string    `json:"remote_id"`
	HTMLURL   string    `json:"html_url,omitempty"`
	Points    float64   `json:"points,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Task statuses. Status changes after creation are outside the importer's
// responsibility.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)
