package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	utsavAuth "github.com/sanghutsav/utsavAuth"
	"github.com/sanghutsav/utsavAuth/middleware"
)

// run wraps a command body so the Service is closed whatever the outcome.
func (a *app) run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.cleanup()
		return fn(cmd.Context(), args)
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "registered mobile number")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password; empty reads one line from stdin, and a blank line signs in with the username")
	_ = cmd.MarkFlagRequired("username")

	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if !cmd.Flags().Changed("password") {
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password = strings.TrimRight(line, "\r\n")
		}

		res, err := a.svc.Login(ctx, utsavAuth.Credentials{Username: username, Password: password})
		if err != nil {
			return err
		}
		if !res.OK() {
			return res.Err()
		}
		fmt.Fprintf(a.out, "signed in as %s (%s), %d permission entries\n",
			res.Session.Username, res.Session.UserType, len(res.Permissions))
		return nil
	})
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		res := a.svc.Logout(ctx)
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintln(a.out, "signed out")
		return nil
	})
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a session is stored and the durable tier is healthy",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		health := a.svc.Health(ctx)
		return a.printJSON(map[string]any{
			"authenticated":     a.svc.IsAuthenticated(ctx),
			"durable_available": health.DurableAvailable,
			"durable_latency":   health.DurableLatency.String(),
			"breaker":           health.BreakerState,
		})
	})
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the stored session without its token",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		rec := a.svc.CurrentSession(ctx)
		if rec == nil {
			return utsavAuth.ErrNoSession
		}
		return a.printJSON(map[string]any{
			"username": rec.Username,
			"roleid":   rec.RoleID,
			"userType": rec.UserType.String(),
		})
	})
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Check the stored session with the backend, clearing it when rejected",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		if !a.svc.RestoreSession(ctx) {
			return errors.New("session not valid; sign in again")
		}
		fmt.Fprintln(a.out, "session valid")
		return nil
	})
	return cmd
}

func newPermissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Print the stored resource permission list",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		return a.printJSON(a.svc.ResourcePermissions(ctx))
	})
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var usersPath string
	var idProofs []string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create accounts from a JSON users file with ID proof attachments",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&usersPath, "users", "", "JSON file with the array of registrants")
	cmd.Flags().StringSliceVar(&idProofs, "id-proof", nil, "ID proof file, one per registrant in order")
	_ = cmd.MarkFlagRequired("users")

	cmd.RunE = a.run(func(ctx context.Context, _ []string) error {
		users, err := os.ReadFile(usersPath)
		if err != nil {
			return err
		}
		if !json.Valid(users) {
			return fmt.Errorf("%s is not valid JSON", usersPath)
		}

		form := &utsavAuth.RegistrationForm{}
		form.Add("users", string(users))
		for i, path := range idProofs {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			contentType := mime.TypeByExtension(filepath.Ext(path))
			form.Attach(fmt.Sprintf("idProofFiles[%d]", i), filepath.Base(path), contentType, f)
		}

		if err := a.svc.RegisterUser(ctx, *form); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "registration submitted")
		return nil
	})
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <route>",
		Short: "Show where the route guard sends a navigation to route",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, args []string) error {
		guard := middleware.NewGuard(a.svc, middleware.DefaultRoutes(),
			middleware.WithLoginRoute(a.svc.LoginRoute()),
			middleware.WithNavigator(utsavAuth.NavigatorFunc(func(_ context.Context, route string) error {
				fmt.Fprintf(a.out, "-> /%s\n", route)
				return nil
			})),
		)
		decision, err := guard.Navigate(ctx, args[0])
		if err != nil {
			return err
		}
		if !decision.Allow {
			fmt.Fprintln(a.out, "sign in required")
		}
		return nil
	})
	return cmd
}
