package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the analytics backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.start(); err != nil {
				return err
			}
			if username == "" || password == "" {
				var err error
				if username, password, err = promptCredentials(cmd, username); err != nil {
					return err
				}
			}

			result := a.auth.Login(cmd.Context(), username, password)
			if !result.Success {
				return fmt.Errorf("login failed: %s", result.Message)
			}
			a.printer.Success("Logged in as " + username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

// promptCredentials asks for the missing username and the password, which is not echoed.
func promptCredentials(cmd *cobra.Command, username string) (string, string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "Username: ",
		Stdin:  io.NopCloser(cmd.InOrStdin()),
		Stdout: cmd.OutOrStdout(),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	if username == "" {
		line, err := rl.Readline()
		if err != nil {
			return "", "", fmt.Errorf("no username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	password, err := rl.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("no password: %w", err)
	}
	if username == "" || len(password) == 0 {
		return "", "", fmt.Errorf("username and password are required")
	}
	return username, string(password), nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.start(); err != nil {
				return err
			}
			a.auth.Logout(cmd.Context())
			a.printer.Success("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if user := a.auth.Session().User; user != nil {
				line := user.Username
				if user.Role != "" {
					line += " (" + user.Role + ")"
				}
				a.printer.Println(line)
			}

			// Opaque tokens carry no claims.
			claims, err := a.auth.Claims()
			if err != nil {
				return nil
			}
			if !claims.ExpiresAt.IsZero() {
				state := "expires"
				if claims.ExpiresAt.Before(time.Now()) {
					state = "expired"
				}
				a.printer.Info(fmt.Sprintf("Token %s %s", state, claims.ExpiresAt.Local().Format(time.DateTime)))
			}
			return nil
		},
	}
}
