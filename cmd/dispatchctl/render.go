package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linesmerrill/dispatch-board/board"
	"github.com/linesmerrill/dispatch-board/catalog"
	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/incidents"
	"github.com/linesmerrill/dispatch-board/livesync"
	"github.com/linesmerrill/dispatch-board/models"
	"github.com/linesmerrill/dispatch-board/shift"
)

// Theme is the board palette. Colors are ANSI 256-color codes; card
// accents use the incident's own #RRGGBB color.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color
	Border     lipgloss.Color
	OwnChat    lipgloss.Color

	StatusPending    lipgloss.Color
	StatusInProgress lipgloss.Color
	StatusCompleted  lipgloss.Color
}

// StatusColor returns the color of a card status
func (theme Theme) StatusColor(status models.Status) lipgloss.Color {
	switch status {
	case models.StatusInProgress:
		return theme.StatusInProgress
	case models.StatusCompleted:
		return theme.StatusCompleted
	default:
		return theme.StatusPending
	}
}

// DarkTheme is used unless the operator picked the light one
var DarkTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("245"),
	Header:           lipgloss.Color("255"),
	Border:           lipgloss.Color("240"),
	OwnChat:          lipgloss.Color("75"),
	StatusPending:    lipgloss.Color("196"),
	StatusInProgress: lipgloss.Color("220"),
	StatusCompleted:  lipgloss.Color("114"),
}

// LightTheme suits terminals with a light background
var LightTheme = Theme{
	NormalText:       lipgloss.Color("235"),
	FaintText:        lipgloss.Color("242"),
	Header:           lipgloss.Color("232"),
	Border:           lipgloss.Color("250"),
	OwnChat:          lipgloss.Color("25"),
	StatusPending:    lipgloss.Color("160"),
	StatusInProgress: lipgloss.Color("130"),
	StatusCompleted:  lipgloss.Color("28"),
}

func themeFor(name string) Theme {
	if name == identity.ThemeLight {
		return LightTheme
	}
	return DarkTheme
}

// pulseWindow is how long a card stays highlighted after an in-place update
const pulseWindow = 3 * time.Second

var statusLabels = map[models.Status]string{
	models.StatusPending:    "PENDING",
	models.StatusInProgress: "IN PROGRESS",
	models.StatusCompleted:  "COMPLETED",
}

// renderer draws board state as plain terminal text
type renderer struct {
	theme Theme
	now   func() time.Time
}

func newRenderer(theme string) renderer {
	return renderer{theme: themeFor(theme), now: time.Now}
}

func (r renderer) board(w io.Writer, app *board.App) {
	r.header(w, app)
	for _, zone := range models.ValidZones() {
		r.feed(w, app.Feeds, zone)
	}
	r.chat(w, app)
}

func (r renderer) header(w io.Writer, app *board.App) {
	title := lipgloss.NewStyle().Foreground(r.theme.Header).Bold(true)
	faint := lipgloss.NewStyle().Foreground(r.theme.FaintText)

	who := "not identified"
	if id, err := app.Identity.Current(); err == nil {
		who = fmt.Sprintf("%s (%s)", id.Name, id.Faction)
	}
	next := shift.NextBoundary(r.now())
	fmt.Fprintln(w, title.Render("DISPATCH BOARD")+"  "+faint.Render(fmt.Sprintf(
		"shift since %s, next reset %s, agent %s",
		app.Boundary().Local().Format("15:04"), next.Local().Format("15:04"), who)))
}

func (r renderer) feed(w io.Writer, feeds *incidents.Feeds, zone models.Zone) {
	border := lipgloss.NewStyle().Foreground(r.theme.Border)
	fmt.Fprintln(w, border.Render("== "+strings.ToUpper(zone.String())+" =="))

	view, ok := feeds.View(zone.String())
	if !ok {
		return
	}
	if view.Placeholder != "" {
		fmt.Fprintln(w, "  "+lipgloss.NewStyle().Foreground(r.theme.FaintText).Italic(true).Render(view.Placeholder))
		return
	}
	for _, node := range view.Nodes {
		fmt.Fprintln(w, "  "+r.card(node.View, r.pulsing(node)))
	}
}

// pulsing reports whether node was updated in place within pulseWindow
func (r renderer) pulsing(node livesync.Node[incidents.Card]) bool {
	return node.Pulses > 0 && r.now().Sub(node.UpdatedAt) < pulseWindow
}

func (r renderer) card(c incidents.Card, pulse bool) string {
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Bold(true)
	if pulse {
		accent = accent.Reverse(true).Blink(true)
	}
	status := lipgloss.NewStyle().Foreground(r.theme.StatusColor(c.Status)).Bold(true)
	normal := lipgloss.NewStyle().Foreground(r.theme.NormalText)
	faint := lipgloss.NewStyle().Foreground(r.theme.FaintText)

	parts := []string{
		accent.Render("█ " + c.Title),
		status.Render("[" + statusLabels[c.Status] + "]"),
	}
	if c.Band != "" {
		parts = append(parts, normal.Render(c.Band))
	}
	if c.PlayerID != "" {
		parts = append(parts, normal.Render("player "+c.PlayerID))
	}
	parts = append(parts, faint.Render(c.Time), faint.Render(c.ID))
	if pulse {
		parts = append(parts, accent.Render("UPDATED"))
	}
	return strings.Join(parts, "  ")
}

func (r renderer) chat(w io.Writer, app *board.App) {
	border := lipgloss.NewStyle().Foreground(r.theme.Border)
	fmt.Fprintln(w, border.Render("== CHAT =="))

	lines := app.Chat.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(w, "  "+lipgloss.NewStyle().Foreground(r.theme.FaintText).Italic(true).Render("No messages this shift"))
		return
	}
	for _, line := range lines {
		author := lipgloss.NewStyle().Foreground(r.theme.NormalText).Bold(true)
		if line.Own {
			author = author.Foreground(r.theme.OwnChat)
		}
		tag := ""
		if line.Faction != "" {
			tag = " (" + line.Faction.String() + ")"
		}
		fmt.Fprintf(w, "  %s %s%s: %s\n",
			lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(line.Time),
			author.Render(line.Author), tag, line.Text)
	}
}

func (r renderer) catalog(w io.Writer, entries []catalog.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(r.theme.FaintText).Render("No robbery types"))
		return
	}
	for _, e := range entries {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(incidents.SafeColor(e.Color))).Render("█")
		fmt.Fprintf(w, "%s %s  %s  %s\n", swatch, e.Name, e.Color, lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(e.ID))
	}
}
