package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps indexed file extensions to MIME types.
var mimeTypes = map[string]string{
	// Text
	".txt": "text/plain",
	".log": "text/plain",
	".rst": "text/x-rst",

	// Markdown
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",

	// Data
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".json": "application/json",
	".xml":  "text/xml",

	// Config
	".yaml":       "text/x-yaml",
	".yml":        "text/x-yaml",
	".toml":       "text/x-toml",
	".ini":        "text/plain",
	".conf":       "text/plain",
	".cfg":        "text/plain",
	".properties": "text/plain",

	// Web and source
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".go":   "text/x-go",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".java": "text/x-java",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".sh":   "text/x-sh",
	".sql":  "text/x-sql",
}

// MimeTypeForPath returns the MIME type for a file path, "text/plain" for
// unknown extensions. Resources carry extracted text, so PDF and Office
// documents are text/plain too.
func MimeTypeForPath(path string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "text/plain"
}
