package app

import (
	"log"
	"mime"
)

// init registers the types the embedded web/static server relies on. Minimal
// images ship without /etc/mime.types, and under nosniff a text/plain
// stylesheet is ignored.
func init() {
	registerStaticType(".css", "text/css; charset=utf-8")
	registerStaticType(".svg", "image/svg+xml")
}

func registerStaticType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: register static MIME type %s: %v", ext, err)
	}
}
