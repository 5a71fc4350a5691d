// Package coursedesk provides the embedded web assets for production builds.
package coursedesk

import "embed"

// In dev mode assets are read from disk; otherwise they are served from these
// embedded filesystems.

//go:embed all:frontend/static
var StaticFS embed.FS

//go:embed all:frontend/templates
var TemplateFS embed.FS
