package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarema/campuscache/internal/credstore"
	"github.com/tkarema/campuscache/internal/errs"
	"github.com/tkarema/campuscache/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newListCmd reads from the local cache only; it never touches the network.
func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list <faculties|programs|course_units|resources>",
		Short: "list cached records for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			d, err := model.ParseDomain(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch d {
			case model.Faculties:
				fs, err := a.cache.ListFaculties(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, fs)
			case model.Programs:
				ps, err := a.cache.ListPrograms(ctx, uuid.Nil)
				if err != nil {
					return err
				}
				return printJSON(out, ps)
			case model.CourseUnits:
				cus, err := a.cache.ListCourseUnits(ctx, model.CourseUnitFilter{})
				if err != nil {
					return err
				}
				return printJSON(out, cus)
			default:
				rs, err := a.cache.ListResources(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, rs)
			}
		},
	}
}

// newBookmarkCmd flips the client-local bookmark flag on a cached resource.
func newBookmarkCmd(v *viper.Viper) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "bookmark <resource-id>",
		Short: "bookmark (or unbookmark) a cached resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.FromString(args[0])
			if err != nil {
				return fmt.Errorf("bad resource id: %w", err)
			}

			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.SetBookmark(cmd.Context(), id, !remove); err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return fmt.Errorf("resource %s is not in the local cache", id)
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the bookmark")
	return cmd
}

// newStatusCmd reports per-domain staleness, connectivity and token expiry.
func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show sync freshness and credential state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			now := time.Now()

			fmt.Fprintf(out, "online: %v\n", a.mon.Online())

			intervals := model.Intervals{
				model.Faculties:   v.GetDuration("interval-faculties"),
				model.Programs:    v.GetDuration("interval-programs"),
				model.CourseUnits: v.GetDuration("interval-course-units"),
				model.Resources:   v.GetDuration("interval-resources"),
			}
			for _, d := range model.AllDomains {
				at, ok, err := a.ledger.LastSynced(ctx, d)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%-13s never synced (due)\n", d.String()+":")
					continue
				}
				age := now.Sub(at).Round(time.Second)
				due := age > intervals.For(d)
				fmt.Fprintf(out, "%-13s synced %s ago (interval %s, due: %v)\n",
					d.String()+":", age, intervals.For(d), due)
			}

			toks, err := a.creds.Tokens()
			switch {
			case errors.Is(err, errs.ErrNoCredentials):
				fmt.Fprintln(out, "credentials: none (login required)")
			case err != nil:
				return err
			default:
				if exp, err := credstore.AccessExpiry(toks.AccessToken); err == nil {
					fmt.Fprintf(out, "credentials: access token expires %s\n", exp.Format(time.RFC3339))
				} else {
					fmt.Fprintln(out, "credentials: present")
				}
			}
			return nil
		},
	}
}

// newResetCmd clears all cached rows and the staleness ledger.
func newResetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "clear the local cache and sync ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.Reset(cmd.Context()); err != nil {
				return err
			}
			if err := a.ledger.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
