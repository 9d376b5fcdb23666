package middleware

import "strings"

var excludedPaths = map[string]struct{}{
	"/health":      {},
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/sitemap.xml": {},
}

var excludedPrefixes = []string{
	"/static/",
	"/image/",
	"/admin/analytics",
	"/_",
}

// IsExcluded reports whether requests to path are never tracked.
func IsExcluded(path string) bool {
	if _, ok := excludedPaths[path]; ok {
		return true
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
