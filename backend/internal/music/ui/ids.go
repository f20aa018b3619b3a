// Package ui renders sessions into Discord embeds and message components.
package ui

import (
	"strconv"
	"strings"
)

const idPrefix = "vibebot"

// Action names a control on the now-playing or queue message
type Action string

const (
	ActionVolumeDown Action = "voldown"
	ActionPrevious   Action = "previous"
	ActionPause      Action = "pause"
	ActionSkip       Action = "skip"
	ActionVolumeUp   Action = "volup"
	ActionLoop       Action = "loop"
	ActionShuffle    Action = "shuffle"
	ActionAutoplay   Action = "autoplay"
	ActionStop       Action = "stop"
	ActionConnect    Action = "connect"
	ActionPlaylist   Action = "playlist"

	ActionQueuePage    Action = "qpage"
	ActionQueuePrev    Action = "qprev"
	ActionQueueRefresh Action = "qrefresh"
	ActionQueueNext    Action = "qnext"
)

// CustomID is the parsed form of a component custom id:
// vibebot:<action>:<guild>[:<arg>]
type CustomID struct {
	Action  Action
	GuildID string
	Arg     string
}

// String encodes the id. Discord caps custom ids at 100 characters.
func (c CustomID) String() string {
	s := idPrefix + ":" + string(c.Action) + ":" + c.GuildID
	if c.Arg != "" {
		s += ":" + c.Arg
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// Page returns the numeric argument, or 1 when it is missing or invalid
func (c CustomID) Page() int {
	n, err := strconv.Atoi(c.Arg)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ID builds a custom id string
func ID(action Action, guildID string, arg ...string) string {
	return CustomID{Action: action, GuildID: guildID, Arg: strings.Join(arg, ":")}.String()
}

// ParseID decodes a custom id produced by ID
func ParseID(raw string) (CustomID, bool) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 || parts[0] != idPrefix || parts[1] == "" || parts[2] == "" {
		return CustomID{}, false
	}
	id := CustomID{Action: Action(parts[1]), GuildID: parts[2]}
	if len(parts) == 4 {
		id.Arg = parts[3]
	}
	return id, true
}
