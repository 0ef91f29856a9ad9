package main

import "strings"

type action int

const (
	actionNone action = iota
	actionChat
	actionMute
	actionVideo
	actionQuit
	actionUnknown
)

// parseLine maps one stdin line to an action. Chat text is returned trimmed.
func parseLine(line string) (action, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return actionNone, ""
	}
	if !strings.HasPrefix(line, "/") {
		return actionChat, line
	}
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/mute":
		return actionMute, ""
	case "/video":
		return actionVideo, ""
	case "/quit", "/exit":
		return actionQuit, ""
	default:
		return actionUnknown, line
	}
}
