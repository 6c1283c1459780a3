package middleware

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Origins the embedded desktop UI connects from: the packaged webview
// scheme plus the local Vite dev server.
var defaultOrigins = []string{
	"tauri://localhost",
	"http://tauri.localhost",
	"http://localhost:1420",
	"http://localhost:5173",
}

// CORS restricts browser access to the desktop shell's UI origins.
// HARMONIA_CORS_ORIGINS overrides the list with comma-separated origins.
func CORS() gin.HandlerFunc {
	origins := defaultOrigins
	if env := os.Getenv("HARMONIA_CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}

	config := cors.DefaultConfig()
	config.AllowOrigins = origins
	// gin-contrib/cors rejects non-http(s) origins unless their scheme
	// is registered; the packaged webview serves from tauri://.
	config.CustomSchemas = []string{"tauri://"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}

	return cors.New(config)
}
