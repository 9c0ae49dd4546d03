// Package web serves the browser page shell and the route middleware that
// sits in front of it.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templates embed.FS

// Matcher lists the page routes the middleware looks at. A pattern ending
// in "/:path*" matches the prefix itself and everything below it.
type Matcher struct {
	Patterns []string
}

// DefaultMatcher covers the dashboard and the two public auth pages.
var DefaultMatcher = Matcher{
	Patterns: []string{"/dashboard/:path*", "/login", "/register"},
}

// Match reports whether path falls under one of the patterns.
func (m Matcher) Match(path string) bool {
	for _, pattern := range m.Patterns {
		if prefix, ok := strings.CutSuffix(pattern, "/:path*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}

// Middleware lets every request through untouched. Session state lives in
// the client, so page routes are not gated here; API routes carry their
// own token check.
func Middleware(matcher Matcher, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "page_middleware").Logger()
	return func(c *gin.Context) {
		if matcher.Match(c.Request.URL.Path) {
			log.Debug().Str("path", c.Request.URL.Path).Msg("Page route passed through")
		}
		c.Next()
	}
}

// LoadTemplates installs the page templates on router.
func LoadTemplates(router *gin.Engine) {
	tmpl := template.Must(template.ParseFS(templates, "templates/*.html"))
	router.SetHTMLTemplate(tmpl)
}

// RegisterPages mounts the page shell for every matched route.
func RegisterPages(router gin.IRoutes) {
	router.GET("/login", page("Sign in", "login"))
	router.GET("/register", page("Create account", "register"))
	router.GET("/dashboard", page("Dashboard", "dashboard"))
	router.GET("/dashboard/*path", page("Dashboard", "dashboard"))
}

func page(title, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "shell.html", gin.H{
			"Title": title,
			"Page":  name,
		})
	}
}
