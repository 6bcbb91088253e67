// Package web embeds the page templates and static assets served by the UI.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering. Each file
// defines one named template; partials are re-rendered on their own by HTMX
// requests.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//
//go:embed static/*
var StaticFS embed.FS
