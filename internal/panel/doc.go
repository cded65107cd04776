// Package panel serves the source selection page.
//
// The page and its default assets are embedded into the binary with
// go:embed. The page renders the Source Tree from GET /api/v1/sources and
// posts selections to /system, so it works unchanged with the original
// button layout: groups expand in place and leaves fire on click.
//
// Icons named in the routing document are served from /static/. When a
// static directory is configured, files there take precedence over the
// embedded defaults, so operators drop their own images next to the
// document without rebuilding.
package panel
