package core

import (
	"net/http"
	"net/url"
)

// Pausable is implemented by whatever owns the wrapper and can hold its requests.
type Pausable interface {
	IsPaused() bool
}

// WebWrapperInterface is the HTTP surface RemoteEngine talks to the engine through.
// Paths are relative to the engine endpoint.
type WebWrapperInterface interface {
	GetURL(path string) (*http.Response, error)
	PostURL(path string, data url.Values) (*http.Response, error)
	// SetHToken stores the form token echoed back on every POST.
	SetHToken(h string)
	// CheckPaused blocks while the owner is paused.
	CheckPaused()
	SetBot(owner Pausable)
}
