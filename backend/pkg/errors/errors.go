package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInput represents invalid user input (position, volume, url)
	ErrorTypeInput ErrorType = "input"
	// ErrorTypePrecondition represents a failed join/playing precondition
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypePermission represents missing bot or user rights
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeUnavailable represents an unreachable external collaborator
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeState represents guarded state races (double destroy, missing session)
	ErrorTypeState ErrorType = "state"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Input errors

// ErrInvalidPosition is returned when a queue position is out of range
var ErrInvalidPosition = NewBaseError(ErrorTypeInput, "invalid position", nil)

// ErrAlreadyAtLimit is returned when volume cannot move further in the requested direction
var ErrAlreadyAtLimit = NewBaseError(ErrorTypeInput, "already at limit", nil)

// ErrNotSeekable is returned when seeking a live stream
var ErrNotSeekable = NewBaseError(ErrorTypeInput, "track is not seekable", nil)

// ErrPlaylistLimit is returned when a guild already stores the maximum number of playlists
var ErrPlaylistLimit = NewBaseError(ErrorTypeInput, "playlist limit reached", nil)

// ErrPlaylistExists is returned when adding a playlist under a taken name
var ErrPlaylistExists = NewBaseError(ErrorTypeInput, "playlist already exists", nil)

// ErrPlaylistNotFound is returned when a named playlist does not exist
var ErrPlaylistNotFound = NewBaseError(ErrorTypeInput, "playlist not found", nil)

// ErrInvalidURL is returned when a link is required but the input is not one
var ErrInvalidURL = NewBaseError(ErrorTypeInput, "invalid url", nil)

// ErrInvalidTimestamp is returned for seek positions that do not parse
var ErrInvalidTimestamp = NewBaseError(ErrorTypeInput, "invalid timestamp", nil)

// ErrNoResults is returned when a search resolves to nothing
var ErrNoResults = NewBaseError(ErrorTypeInput, "no results", nil)

// InvalidPositionError carries the rejected 1-indexed position and the valid maximum
type InvalidPositionError struct {
	*BaseError
	Position int
	Max      int
}

func NewInvalidPosition(position, max int) *InvalidPositionError {
	return &InvalidPositionError{
		BaseError: NewBaseError(ErrorTypeInput, fmt.Sprintf("position %d out of range 1-%d", position, max), ErrInvalidPosition),
		Position:  position,
		Max:       max,
	}
}

// Precondition errors

// ErrNoPreviousTrack is returned when there is no finished track to go back to
var ErrNoPreviousTrack = NewBaseError(ErrorTypePrecondition, "no previous track", nil)

// ErrNotConnected is returned when an operation needs a voice connection
var ErrNotConnected = NewBaseError(ErrorTypePrecondition, "not connected", nil)

// ErrAlreadyConnected is returned by a join request outside the Disconnected state
var ErrAlreadyConnected = NewBaseError(ErrorTypePrecondition, "already connected", nil)

// ErrNothingPlaying is returned when an operation needs a current track
var ErrNothingPlaying = NewBaseError(ErrorTypePrecondition, "nothing playing", nil)

// ErrNotSetup is returned when the guild has no music channel binding
var ErrNotSetup = NewBaseError(ErrorTypePrecondition, "music channel not set up", nil)

// ErrGuildOnly is returned for actions invoked outside a guild
var ErrGuildOnly = NewBaseError(ErrorTypePrecondition, "only usable in a server", nil)

// ErrJoinVoiceFirst is returned when the actor is not in any voice channel
var ErrJoinVoiceFirst = NewBaseError(ErrorTypePrecondition, "actor not in voice", nil)

// ErrJoinMyChannel is returned when the actor is not in the bot's voice channel
var ErrJoinMyChannel = NewBaseError(ErrorTypePrecondition, "actor in another voice channel", nil)

// Permission errors

// ErrPermissionDenied is returned when the bot lacks connect/speak/view on the target channel
var ErrPermissionDenied = NewBaseError(ErrorTypePermission, "permission denied", nil)

// ErrForeignControl is returned when a control carries another guild's id
var ErrForeignControl = NewBaseError(ErrorTypePermission, "control belongs to another guild", nil)

// ErrChannelFull is returned when the voice channel is at capacity and the bot cannot bypass it
var ErrChannelFull = NewBaseError(ErrorTypePermission, "voice channel full", nil)

// Unavailable errors

// ErrNoNode is returned when no streaming node is reachable
var ErrNoNode = NewBaseError(ErrorTypeUnavailable, "no nodes available", nil)

// ErrJoinTimeout is returned when the voice handshake does not complete in time
var ErrJoinTimeout = NewBaseError(ErrorTypeUnavailable, "voice handshake timed out", nil)

// SearchFailedError wraps a failed node search
type SearchFailedError struct {
	*BaseError
	Query string
}

func NewSearchFailed(query string, err error) *SearchFailedError {
	return &SearchFailedError{
		BaseError: NewBaseError(ErrorTypeUnavailable, fmt.Sprintf("search failed: %s", query), err),
		Query:     query,
	}
}

// State errors

// ErrSessionDestroyed is returned when an operation races with guild removal
var ErrSessionDestroyed = NewBaseError(ErrorTypeState, "session destroyed", nil)

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if typed, ok := err.(interface{ Kind() ErrorType }); ok && typed.Kind() == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// UserMessage renders an error as the short inline text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var posErr *InvalidPositionError
	if errors.As(err, &posErr) {
		return fmt.Sprintf("Invalid position `%d`, choose between `1` and `%d`.", posErr.Position, posErr.Max)
	}
	var searchErr *SearchFailedError
	if errors.As(err, &searchErr) {
		return fmt.Sprintf("Failed to search for `%s`, try again later.", searchErr.Query)
	}

	switch {
	case errors.Is(err, ErrInvalidPosition):
		return "Invalid position."
	case errors.Is(err, ErrAlreadyAtLimit):
		return "Already at the limit."
	case errors.Is(err, ErrNotSeekable):
		return "This track is not seekable."
	case errors.Is(err, ErrPlaylistLimit):
		return "This server already has the maximum of 10 playlists."
	case errors.Is(err, ErrPlaylistExists):
		return "A playlist with that name already exists."
	case errors.Is(err, ErrPlaylistNotFound):
		return "No playlist with that name."
	case errors.Is(err, ErrInvalidTimestamp):
		return "Invalid time, use a format such as `1:30` or `90`."
	case errors.Is(err, ErrInvalidURL):
		return "That is not a valid link."
	case errors.Is(err, ErrNoResults):
		return "No results found."
	case errors.Is(err, ErrNoPreviousTrack):
		return "There is no previous track."
	case errors.Is(err, ErrNotConnected):
		return "I'm not connected to a voice channel."
	case errors.Is(err, ErrAlreadyConnected):
		return "I'm already connected."
	case errors.Is(err, ErrNothingPlaying):
		return "I'm not playing music."
	case errors.Is(err, ErrNotSetup):
		return "The music channel is not set up, use `/setup` first."
	case errors.Is(err, ErrGuildOnly):
		return "This is only usable in a server."
	case errors.Is(err, ErrJoinVoiceFirst):
		return "Join a voice channel first."
	case errors.Is(err, ErrJoinMyChannel):
		return "Join my voice channel first."
	case errors.Is(err, ErrPermissionDenied):
		return "I need the `Connect`, `Speak` and `View Channel` permissions in your voice channel."
	case errors.Is(err, ErrForeignControl):
		return "This control belongs to another server."
	case errors.Is(err, ErrChannelFull):
		return "Your voice channel is full."
	case errors.Is(err, ErrNoNode):
		return "No nodes available, try again later."
	case errors.Is(err, ErrJoinTimeout):
		return "Could not connect to your voice channel, try again later."
	case errors.Is(err, ErrSessionDestroyed):
		return "The player was shut down, try again."
	}

	var base *BaseError
	if errors.As(err, &base) && base.Type == ErrorTypeInput {
		return "Invalid input: " + base.Message + "."
	}
	return "Something went wrong."
}
