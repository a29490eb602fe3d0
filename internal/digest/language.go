package digest

import (
	"path/filepath"
	"strings"
)

// languageIdentifiers maps file extensions to fenced-block language tags.
// Unknown extensions get an empty tag.
var languageIdentifiers = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".json": "json",
	".xml":  "xml",
	".sql":  "sql",
	".sh":   "bash",
	".cpp":  "cpp",
	".c":    "c",
	".java": "java",
	".go":   "go",
}

// LanguageIdentifier returns the fenced code block language tag for fileName.
func LanguageIdentifier(fileName string) string {
	extension := strings.ToLower(filepath.Ext(fileName))
	return languageIdentifiers[extension]
}
