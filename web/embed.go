// Package web holds the dashboard page and its stylesheet, compiled into
// the umkm binary.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//go:embed static/*
var StaticFS embed.FS
