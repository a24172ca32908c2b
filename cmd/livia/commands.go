package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/session"
)

var version = "dev"

func newRootCmd(c *console) *cobra.Command {
	root := &cobra.Command{
		Use:   "livia",
		Short: "LIVIA operator console",
		Long: `Console for the LIVIA customer-service platform.

Super admins manage tenants, agents and users under 'livia admin'.
Tenant users work their conversations under 'livia tenant'.

Quick Start:
  livia login --email you@example.com   # Sign in
  livia whoami                          # Show the current principal
  livia shell                           # Keep one session and cache alive`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.configure()
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", c.verbose, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.server, "server", c.server, "Server URL (overrides LIVIA_SERVER_URL)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newShellCmd(c),
		newAdminCmd(c),
		newTenantCmd(c),
	)
	return root
}

func newLoginCmd(c *console) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.open(ctx); err != nil {
				return err
			}
			c.nav.Redirect(c.table.LoginPath())
			if password == "" {
				p, err := readLine(c, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if _, err := c.provider.Wait(ctx); err != nil {
				return err
			}
			if err := c.provider.SignIn(ctx, email, password); err != nil {
				return err
			}
			snap := c.provider.Snapshot()
			fmt.Fprintf(c.out, "Signed in as %s (%s), now at %s\n",
				snap.Principal.Email, roleStyle.Render(string(snap.Principal.Role)), pathStyle.Render(c.nav.CurrentPath()))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.open(ctx); err != nil {
				return err
			}
			if _, err := c.provider.Wait(ctx); err != nil {
				return err
			}
			if err := c.provider.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state and principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.open(ctx); err != nil {
				return err
			}
			snap, err := c.provider.Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, headerStyle.Render(string(snap.State)))
			if snap.State != session.Active || snap.Principal == nil {
				return nil
			}
			p := snap.Principal
			fmt.Fprintf(c.out, "%s <%s>\n", p.FullName, p.Email)
			fmt.Fprintf(c.out, "role:   %s\n", roleStyle.Render(string(p.Role)))
			if p.TenantID != nil {
				fmt.Fprintf(c.out, "tenant: %s\n", p.TenantID)
			}
			fmt.Fprintf(c.out, "home:   %s\n", pathStyle.Render(c.table.DashboardRoot(p.Role)))
			return nil
		},
	}
}

func newShellCmd(c *console) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands against one long-lived session and cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.open(ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.out, dimStyle.Render("Type a command, 'exit' to quit."))
			for {
				fmt.Fprint(c.out, prompt(c))
				text, err := c.in.ReadString('\n')
				if err != nil && text == "" {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return fmt.Errorf("reading input: %w", err)
				}
				line := strings.Fields(text)
				if len(line) == 0 {
					continue
				}
				if line[0] == "exit" || line[0] == "quit" {
					return nil
				}
				if line[0] == "shell" {
					fmt.Fprintln(c.errOut, "already in a shell")
					continue
				}
				if err := runLine(ctx, c, line); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					fmt.Fprintf(c.errOut, "Error: %v\n", err)
				}
			}
		},
	}
}

// runLine executes one shell line on a fresh command tree bound to the
// same console.
func runLine(ctx context.Context, c *console, args []string) error {
	root := newRootCmd(c)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func prompt(c *console) string {
	where := c.nav.CurrentPath()
	if c.table.Classify(where) == route.Public {
		where = "livia"
	}
	return pathStyle.Render(where) + "> "
}

func readLine(c *console, label string) (string, error) {
	fmt.Fprint(c.errOut, label)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
