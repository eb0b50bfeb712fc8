package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/stremur/internal/client"
	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/and161185/stremur/internal/session"
)

// credentials names the profile whose PIN unlocks a token-gated call.
type credentials struct {
	as  string
	pin string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.as, "as", "", "acting profile id (admin for management commands)")
	cmd.Flags().StringVar(&c.pin, "as-pin", "", "PIN of the acting profile")
}

// authorized returns a client carrying a session token of the acting profile.
// fallback is used when --as is empty.
func (cc *commandContext) authorized(ctx context.Context, cred credentials, fallback uuid.UUID) (*client.Client, error) {
	id := fallback
	if cred.as != "" {
		parsed, err := uuid.FromString(cred.as)
		if err != nil {
			return nil, fmt.Errorf("--as: %w", err)
		}
		id = parsed
	}
	if id == uuid.Nil {
		return nil, errors.New("--as is required")
	}
	tok, err := cc.cl.OpenSession(ctx, id, cred.pin)
	if err != nil {
		return nil, err
	}
	return cc.cl.WithToken(tok.Token), nil
}

func parseProfileID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: profile id %q", errs.ErrValidation, s)
	}
	return id, nil
}

func printProfile(cmd *cobra.Command, p *model.Profile) {
	printJSON(cmd.OutOrStdout(), httpapi.ProfileToDTO(*p))
}

func newProfilesCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "profiles", Short: "Manage household profiles"}
	cmd.AddCommand(
		newProfilesListCommand(cc),
		newProfilesCreateCommand(cc),
		newProfilesUpdateCommand(cc),
		newProfilesDeleteCommand(cc),
	)
	return cmd
}

func newProfilesListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := cc.cl.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]httpapi.ProfileDTO, 0, len(list))
			for _, p := range list {
				out = append(out, httpapi.ProfileToDTO(p))
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newProfilesCreateCommand(cc *commandContext) *cobra.Command {
	var (
		in   model.NewProfile
		pin  string
		cred credentials
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile (the first one must be --admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pin != "" {
				in.Pin = &pin
			}
			cl := cc.cl
			if cred.as != "" {
				var err error
				if cl, err = cc.authorized(cmd.Context(), cred, uuid.Nil); err != nil {
					return err
				}
			}
			p, err := cl.CreateProfile(cmd.Context(), in)
			if err != nil {
				return err
			}
			printProfile(cmd, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&pin, "pin", "", "optional 4-digit PIN")
	cmd.Flags().BoolVar(&in.IsAdmin, "admin", false, "grant profile management")
	cmd.Flags().StringVar(&in.Color, "color", "", "avatar color #rrggbb")
	cred.bind(cmd)
	return cmd
}

func newProfilesUpdateCommand(cc *commandContext) *cobra.Command {
	var (
		name, pin, color string
		clearPin         bool
		cred             credentials
	)
	cmd := &cobra.Command{
		Use:   "update <profile-id>",
		Short: "Change name, PIN or color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			var patch model.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.Name = model.Some(name)
			}
			if cmd.Flags().Changed("color") {
				patch.Color = model.Some(color)
			}
			switch {
			case clearPin:
				patch.Pin = model.Some[*string](nil)
			case cmd.Flags().Changed("pin"):
				patch.Pin = model.Some(&pin)
			}
			cl, err := cc.authorized(cmd.Context(), cred, id)
			if err != nil {
				return err
			}
			p, err := cl.UpdateProfile(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			printProfile(cmd, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&pin, "pin", "", "new 4-digit PIN")
	cmd.Flags().BoolVar(&clearPin, "clear-pin", false, "remove the PIN")
	cmd.Flags().StringVar(&color, "color", "", "new avatar color")
	cred.bind(cmd)
	return cmd
}

func newProfilesDeleteCommand(cc *commandContext) *cobra.Command {
	var cred credentials
	cmd := &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a profile with its history and watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			cl, err := cc.authorized(cmd.Context(), cred, uuid.Nil)
			if err != nil {
				return err
			}
			deleted, err := cl.DeleteProfile(cmd.Context(), id)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), httpapi.DeletedResponse{Deleted: deleted})
			return nil
		},
	}
	cred.bind(cmd)
	return cmd
}

func newUseCommand(cc *commandContext) *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "use <profile-id>",
		Short: "Select the active profile on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			if cc.sel.State() != session.Unselected {
				if err := cc.sel.Logout(); err != nil {
					return err
				}
			}
			st, err := cc.sel.Choose(cmd.Context(), id)
			if err != nil {
				return err
			}
			if st == session.PendingPin {
				ok, err := cc.sel.SubmitPin(cmd.Context(), pin)
				if err != nil {
					return err
				}
				if !ok {
					_ = cc.sel.Cancel()
					return errs.ErrInvalidPin
				}
			}
			printProfile(cmd, cc.sel.Profile())
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "PIN of the profile, if it has one")
	return cmd
}

func newLogoutCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cc.sel.State() == session.Unselected {
				return nil
			}
			return cc.sel.Logout()
		},
	}
}

func newWhoamiCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := cc.sel.Profile()
			if p == nil {
				return session.ErrNoActiveProfile
			}
			printProfile(cmd, p)
			return nil
		},
	}
}
