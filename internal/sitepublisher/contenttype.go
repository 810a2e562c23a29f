// Copyright 2025 James Ross
package sitepublisher

import "path/filepath"

// contentTypeByExt maps the static-site-generator's output extensions to
// the content-type objectstore.UploadBinary needs, per spec.md §4.7 step
// 6. Unknown extensions fall back to application/octet-stream.
var contentTypeByExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".txt":  "text/plain",
	".woff": "font/woff",
	".woff2": "font/woff2",
}

func contentTypeFor(path string) string {
	ct, ok := contentTypeByExt[filepath.Ext(path)]
	if !ok {
		return "application/octet-stream"
	}
	return ct
}
