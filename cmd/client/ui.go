package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/protocol"
)

var (
	primary = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(success)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)
	statusStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 2)
)

func phaseStyle(p negotiation.Phase) lipgloss.Style {
	switch p {
	case negotiation.Connected:
		return statusStyle.Background(success)
	case negotiation.Connecting:
		return statusStyle.Background(warning)
	default:
		return statusStyle.Background(danger)
	}
}

func printBanner(room, name, chat string) {
	body := fmt.Sprintf("%s\nroom  %s\nname  %s\nchat  %s\n\n%s",
		titleStyle.Render("Duet"), room, name, chat,
		mutedStyle.Render("/mute  /video  /quit"))
	fmt.Println(boxStyle.Render(body))
}

func printPhase(p negotiation.Phase) {
	fmt.Println(phaseStyle(p).Render(p.String()))
}

func printChat(self string, m protocol.ChatMessage) {
	name := peerStyle.Render(m.Username)
	if m.Username == self {
		name = selfStyle.Render(m.Username)
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Printf("%s %s: %s\n", mutedStyle.Render(ts.Local().Format(time.TimeOnly)), name, m.Text)
}

func printInfo(msg string) {
	fmt.Println(mutedStyle.Render(msg))
}

func printError(msg string) {
	fmt.Println(errorStyle.Render("✗ " + msg))
}
