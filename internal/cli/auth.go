package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	apperrors "github.com/coursedesk/coursedesk/internal/errors"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// userError replaces err with the message the backend or a flow meant for
// the user, when there is one.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(apperrors.UserMessage(err, err.Error()))
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <phone>",
		Short: "Sign in with phone number and password",
		Long: `Sign in with phone number and password. Without --password the password is
read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				var err error
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			sess, err := svc.Auth.LoginWithPassword(a.ctx(cmd), a.sessionKey(),
				ports.PasswordLoginInput{PhoneNumber: args[0], Password: password})
			if err != nil {
				return userError(err)
			}
			a.reportLogin(sess)
			return nil
		},
	}
	cmd.Flags().String("password", "", "account password")
	return cmd
}

func (a *app) loginSMSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login-sms <phone>",
		Short: "Sign in with a verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			sess, err := svc.Auth.LoginWithSMS(a.ctx(cmd), a.sessionKey(),
				ports.SMSLoginInput{PhoneNumber: args[0], Code: code})
			if err != nil {
				return userError(err)
			}
			a.reportLogin(sess)
			return nil
		},
	}
	cmd.Flags().String("code", "", "verification code (see send-code)")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func (a *app) reportLogin(sess domainauth.Session) {
	a.printer.Success("已登录：%s (%s)", sess.Identity.DisplayName(), sess.Identity.Role)
	if home, ok := a.routes.HomeFor(sess.Identity.Role); ok {
		a.printer.Info("首页：%s", home)
	}
}

func (a *app) sendCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send-code <phone>",
		Short: "Request a verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purpose, _ := cmd.Flags().GetString("type")
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			err = svc.Auth.SendCode(a.ctx(cmd), args[0], ports.CodePurpose(strings.ToUpper(purpose)))
			if err != nil {
				return userError(err)
			}
			a.printer.Success("验证码已发送")
			return nil
		},
	}
	cmd.Flags().String("type", string(ports.CodeLogin), "code purpose: LOGIN, REGISTER or RESET_PASSWORD")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session of the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			if err := svc.Auth.Logout(a.ctx(cmd), a.sessionKey()); err != nil {
				return err
			}
			a.printer.Success("已退出登录")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			sess, ok := svc.Sessions.Current(a.ctx(cmd), a.sessionKey())
			if !ok {
				return errNotSignedIn
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sess.Identity)
			}

			id := sess.Identity
			rows := [][]string{
				{"name", id.DisplayName()},
				{"role", string(id.Role)},
				{"user id", id.UserID},
				{"username", id.Username},
				{"phone", id.PhoneNumber},
				{"profile", a.sessionKey()},
			}
			if !sess.ExpiresAt.IsZero() {
				rows = append(rows, []string{"expires", sess.ExpiresAt.Local().Format("2006-01-02 15:04")})
			}
			return RenderTable(cmd.OutOrStdout(), []string{"field", "value"}, rows)
		},
	}
	cmd.Flags().Bool("json", false, "output the identity as JSON")
	return cmd
}
