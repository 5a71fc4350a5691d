package main

import (
	"fmt"
	"strings"

	"github.com/coursedesk/coursedesk/internal/cli"
	"github.com/coursedesk/coursedesk/internal/domain/nav"
)

func runRoutes(cmdCtx *commandContext, _ []string) error {
	routes := nav.DefaultRouteMap()
	if err := routes.Validate(); err != nil {
		return fmt.Errorf("route table is invalid: %w", err)
	}

	rows := make([][]string, 0, len(routes.Areas)+1)
	for _, a := range routes.Areas {
		paths := make([]string, len(a.Menu))
		for i, e := range a.Menu {
			paths[i] = e.Path
		}
		rows = append(rows, []string{string(a.Role), a.Prefix, a.Home, strings.Join(paths, " ")})
	}
	rows = append(rows, []string{"(public)", "", "", strings.Join(routes.Public, " ")})
	return cli.RenderTable(cmdCtx.Out, []string{"role", "prefix", "home", "routes"}, rows)
}
