package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coursedesk/coursedesk/internal/domain/access"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/gateway"
)

// current returns the profile's session, or nil when there is none.
func (a *app) current(cmd *cobra.Command) (*domainauth.Session, error) {
	svc, err := a.ensureServices()
	if err != nil {
		return nil, err
	}
	sess, ok := svc.Sessions.Current(a.ctx(cmd), a.sessionKey())
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (a *app) menuCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Show the navigation menu for the signed-in role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.current(cmd)
			if err != nil {
				return err
			}
			if sess == nil {
				return errNotSignedIn
			}
			path, _ := cmd.Flags().GetString("path")
			if path == "" {
				path, _ = a.routes.HomeFor(sess.Identity.Role)
			}

			items := a.routes.Compose(sess.Identity.Role, path)
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				marker := ""
				if it.Active {
					marker = "*"
				}
				rows = append(rows, []string{marker, it.Label, it.Path})
			}
			return RenderTable(cmd.OutOrStdout(), []string{"active", "label", "path"}, rows)
		},
	}
	cmd.Flags().String("path", "", "route to mark active (default: your home)")
	return cmd
}

func (a *app) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <route>",
		Short: "Show where a route leads for the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/" + strings.TrimLeft(args[0], "/")
			sess, err := a.current(cmd)
			if err != nil {
				return err
			}
			res := a.routes.Resolve(sess, path)
			switch res.Decision.Kind {
			case access.KindAllow:
				a.printer.Success("%s", res.Target)
			case access.KindRedirectHome:
				a.printer.Warning("%s 不属于 %s，跳转到 %s", path, res.Decision.Role, res.Target)
				a.printer.Print("%s", res.Target)
			default:
				a.printer.Warning("%s 需要登录", path)
				a.printer.Print("%s", res.Target)
			}
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch backend data with the profile's token",
		Long: `Fetch a backend resource and print the envelope's data as JSON.
The path is relative to the API prefix, e.g. /courses or /assignments?courseId=1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.ensureServices()
			if err != nil {
				return err
			}
			path, query, err := splitQuery(args[0])
			if err != nil {
				return err
			}
			data, err := svc.Gateway.GetData(a.ctx(cmd), path, query)
			if errors.Is(err, gateway.ErrCredentialRejected) {
				return errNotSignedIn
			}
			if err != nil {
				return userError(err)
			}

			var out bytes.Buffer
			if len(data) == 0 {
				data = json.RawMessage("null")
			}
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			out.WriteByte('\n')
			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}
	return cmd
}

func splitQuery(raw string) (string, url.Values, error) {
	path, rawQuery, _ := strings.Cut(raw, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("invalid query %q: %w", rawQuery, err)
	}
	return "/" + strings.TrimLeft(path, "/"), query, nil
}
