package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syncnotes/syncnotes-go/internal/api"
	"github.com/syncnotes/syncnotes-go/internal/session"
)

func (a *app) newLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if password == "" {
				var err error
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			client, err := a.api()
			if err != nil {
				return err
			}

			token, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			sess, err := a.sessions.Save(token)
			if err != nil {
				return fmt.Errorf("persist session: %w", err)
			}

			who := sess.Identity.Username
			if who == "" {
				who = username
			}
			fmt.Printf("Logged in as %s\n", who)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted if omitted)")
	return cmd
}

func (a *app) newRegisterCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <name> <username>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, username := args[0], args[1]
			if password == "" {
				var err error
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			client, err := a.api()
			if err != nil {
				return err
			}
			if err := client.Register(cmd.Context(), name, username, password); err != nil {
				return err
			}

			fmt.Printf("Registered %s, you can log in now\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted if omitted)")
	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user, rooms and pending tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.sessions.Current()
			if err != nil {
				return err
			}

			client, err := a.api()
			if err != nil {
				return err
			}

			me, err := client.Me(cmd.Context())
			if err != nil {
				// A rejected token is stale state, not a keeper.
				var apiErr *api.Error
				if errors.As(err, &apiErr) && apiErr.Status == 401 {
					_ = a.sessions.Clear()
					return fmt.Errorf("session expired, run login again")
				}
				return err
			}

			fmt.Printf("User: %s (%s)\n", me.User.Username, me.User.ID)
			if exp := sess.ExpiresAt(); !exp.IsZero() {
				fmt.Printf("Session expires: %s\n", exp.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("Rooms: %d\n", len(me.Rooms))
			for _, room := range me.Rooms {
				fmt.Printf("  %s  %s\n", room.ID, room.Name)
			}
			pending := 0
			for _, task := range me.Tasks {
				if !task.Completed {
					pending++
				}
			}
			fmt.Printf("Pending tasks: %d\n", pending)
			return nil
		},
	}
}

func (a *app) newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check backend connectivity and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.api()
			if err != nil {
				return err
			}
			msg, err := client.Ping(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	return line, nil
}

// identityOrZero returns the stored identity, or a zero value when no
// session exists, for flows that degrade gracefully.
func (a *app) identityOrZero() session.Identity {
	sess, err := a.sessions.Current()
	if err != nil {
		return session.Identity{}
	}
	return sess.Identity
}
