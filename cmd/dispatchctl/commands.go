package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/linesmerrill/dispatch-board/identity"
	"github.com/linesmerrill/dispatch-board/incidents"
	"github.com/linesmerrill/dispatch-board/livesync"
	"github.com/linesmerrill/dispatch-board/models"
)

func identifyCmd(o *options) *cobra.Command {
	var faction string
	cmd := &cobra.Command{
		Use:   "identify NAME",
		Short: "Save the agent name and faction used for reports and chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity().Save(strings.Join(args, " "), models.Zone(strings.ToLower(faction)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identified as %s (%s), local id %s\n", id.Name, id.Faction, id.LocalID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&faction, "faction", "f", string(models.ZoneNorth), "Faction: north or south")
	return cmd
}

func themeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show or set the board theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{identity.ThemeDark, identity.ThemeLight},
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := o.identity()
			if len(args) == 1 {
				if err := ids.SetTheme(strings.ToLower(args[0])); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), ids.Theme())
			return nil
		},
	}
}

func boardCmd(o *options) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show both feeds and the chat for the current shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			r := newRenderer(s.Identity.Theme())
			out := cmd.OutOrStdout()
			if !watch {
				r.board(out, s.App)
				return nil
			}

			redraw := make(chan struct{}, 1)
			poke := func() {
				select {
				case redraw <- struct{}{}:
				default:
				}
			}
			s.Feeds.OnChange(func(c livesync.Change) {
				poke()
				if c.Type == models.ChangeModified {
					// clear the highlight once the pulse is over
					time.AfterFunc(pulseWindow, poke)
				}
			})
			s.Chat.Feed().OnChange(func(livesync.Change) { poke() })
			poke()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-redraw:
					fmt.Fprint(out, "\x1b[H\x1b[2J")
					r.board(out, s.App)
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep the board open and redraw on every change")
	return cmd
}

// formFlags are the incident form fields shared by report and edit
type formFlags struct {
	zone, playerID, band, color, robberyType string
}

func (f *formFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.zone, "zone", "z", "", "Jurisdiction: north or south")
	cmd.Flags().StringVarP(&f.robberyType, "type", "t", "", "Robbery type, one of the catalog names")
	cmd.Flags().StringVarP(&f.band, "band", "b", "", "Gang or band")
	cmd.Flags().StringVarP(&f.playerID, "player", "p", "", "Player id")
	cmd.Flags().StringVarP(&f.color, "color", "c", "", "Card color as #RRGGBB; defaults to the robbery type's color")
}

// apply copies the flags the operator set onto form
func (f *formFlags) apply(cmd *cobra.Command, form incidents.Form) incidents.Form {
	changed := cmd.Flags().Changed
	if changed("zone") {
		form.Zone = models.Zone(strings.ToLower(f.zone))
	}
	if changed("type") {
		form.RobberyType = f.robberyType
	}
	if changed("band") {
		form.Band = f.band
	}
	if changed("player") {
		form.PlayerID = f.playerID
	}
	if changed("color") {
		form.Color = f.color
	}
	return form
}

func reportCmd(o *options) *cobra.Command {
	var f formFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Publish a new incident to a feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			s.Lifecycle.OpenForm()
			form := f.apply(cmd, s.Lifecycle.Form())
			if !cmd.Flags().Changed("color") {
				if c, ok := s.Catalog.Color(form.RobberyType); ok {
					form.Color = c
				}
			}
			s.Lifecycle.SetForm(form)
			if err := s.Lifecycle.Submit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s in the %s\n", form.RobberyType, form.Zone)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func editCmd(o *options) *cobra.Command {
	var f formFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the fields of an incident on the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			current, ok := s.Feeds.Lookup(id)
			if !ok {
				return fmt.Errorf("incident %s is not on the board this shift", id)
			}
			s.Lifecycle.StartEdit(id, current)
			s.Lifecycle.SetForm(f.apply(cmd, s.Lifecycle.Form()))
			if err := s.Lifecycle.Submit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", id)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func cycleCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle ID",
		Short: "Advance an incident to its next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			current, ok := s.Feeds.Lookup(id)
			if !ok {
				return fmt.Errorf("incident %s is not on the board this shift", id)
			}
			next := s.Lifecycle.CycleStatus(cmd.Context(), id, current.Status.Normalize())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", id, current.Status.Normalize(), next)
			return nil
		},
	}
}

func resolveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve ID",
		Short: "Close an incident and remove it for everyone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			deleted, err := s.Lifecycle.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Kept")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %s\n", args[0])
			return nil
		},
	}
}

func chatCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [MESSAGE...]",
		Short: "Post to the internal chat, or show this shift's messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			send := len(args) > 0
			s, err := o.open(cmd, send)
			if err != nil {
				return err
			}
			defer s.Close()

			if send {
				return s.Chat.Send(cmd.Context(), strings.Join(args, " "))
			}
			newRenderer(s.Identity.Theme()).chat(cmd.OutOrStdout(), s.App)
			return nil
		},
	}
}
