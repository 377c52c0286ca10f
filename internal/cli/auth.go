package cli

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"time"

	"flow-cli/internal/model"
	"flow-cli/internal/session"

	"github.com/spf13/cobra"
)

type passwordFlags struct {
	password string
	stdin    bool
}

func (p *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.password, "password", "", "Password (prefer FLOW_PASSWORD or --password-stdin)")
	cmd.Flags().BoolVar(&p.stdin, "password-stdin", false, "Read the password from the first line of stdin")
}

// resolve picks the password from --password, then --password-stdin, then FLOW_PASSWORD.
func (p *passwordFlags) resolve(cmd *cobra.Command) (string, error) {
	if p.password != "" {
		return p.password, nil
	}
	if p.stdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", errors.New("read password from stdin: no input")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return os.Getenv("FLOW_PASSWORD"), nil
}

type sessionView struct {
	User      *model.User `json:"user"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}

func (v sessionView) Text() string {
	if v.User == nil {
		return "not logged in"
	}
	s := "Logged in as " + v.User.Name + " <" + v.User.Email + ">"
	if v.ExpiresAt != nil {
		s += "\nToken expires " + v.ExpiresAt.Local().Format(time.RFC1123)
	}
	return s
}

func newSessionView(s model.Session) sessionView {
	v := sessionView{User: s.User}
	if exp, ok := session.ExpiresAt(s.Token); ok {
		v.ExpiresAt = &exp
	}
	return v
}

func newLoginCmd(app *App) *cobra.Command {
	var email string
	var pw passwordFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := pw.resolve(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if _, err := e.auth.Login(cmd.Context(), email, password); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": newSessionView(e.session.Current())})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	pw.register(cmd)
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(app *App) *cobra.Command {
	var name, email string
	var pw passwordFlags

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := pw.resolve(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if _, err := e.auth.Signup(cmd.Context(), name, email, password); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": newSessionView(e.session.Current())})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	pw.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.auth.Logout(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"loggedOut": true}})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(app, nil)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := e.requireAuth(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": newSessionView(e.session.Current())})
		},
	}
}
