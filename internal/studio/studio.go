// Package studio is the orchestration shell of NewsCast. A [Shell] collects
// articles and broadcast options, drives the generation pipeline
// (summarize and cover art, then speech synthesis), and hands the resulting
// audio to the playback engine.
//
// The shell also owns the live playback settings. It pushes every change to
// the engine, which applies it to the running source node in place.
//
// Every failure inside the pipeline is collapsed into [ErrGeneration]. The
// shell then returns to [Idle] with the single user-facing
// [GenerationFailedMessage] and keeps no partial result.
package studio

import (
	"errors"
	"fmt"
)

// GenerationFailedMessage is the only error text shown to users when the
// pipeline fails.
const GenerationFailedMessage = "Unable to process request. Please verify API availability or try a shorter text."

var (
	// ErrGeneration wraps any failure of the external generation backends,
	// including empty results.
	ErrGeneration = errors.New("studio: generation failed")

	// ErrInvalidCredentials is returned by Login for a wrong id or secret.
	ErrInvalidCredentials = errors.New("studio: invalid credentials")

	// ErrBusy is returned when an operation is not allowed in the current
	// shell state, e.g. a second Generate while one is running.
	ErrBusy = errors.New("studio: busy")

	// ErrNoArticles is returned by Generate when the queue is empty.
	ErrNoArticles = errors.New("studio: no articles queued")

	// ErrEmptyArticle is returned by AddArticle for blank content.
	ErrEmptyArticle = errors.New("studio: article content is empty")

	// ErrNotFound is returned for unknown article ids and for downloads
	// requested before anything was generated.
	ErrNotFound = errors.New("studio: not found")

	// ErrPermission is returned when a capture capability is disabled.
	ErrPermission = errors.New("studio: permission denied")
)

// State is the top-level session state.
type State int

const (
	Idle State = iota
	Summarizing
	GeneratingAudio
	Playing
	AdminLogin
	AdminDashboard
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Summarizing:
		return "summarizing"
	case GeneratingAudio:
		return "generating_audio"
	case Playing:
		return "playing"
	case AdminLogin:
		return "admin_login"
	case AdminDashboard:
		return "admin_dashboard"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State serialise as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// generating reports whether the pipeline owns the shell in state s.
func (s State) generating() bool {
	return s == Summarizing || s == GeneratingAudio
}
