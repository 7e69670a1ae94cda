// CLASSIFICATION: COMMUNITY
// Filename: handlers.go v0.3
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package api

import (
	"net/http"
	"strings"

	"servedir/internal/static"
)

// Index points visitors at the mounted prefixes.
func Index(mounts []static.Mount) http.HandlerFunc {
	var b strings.Builder
	for _, m := range mounts {
		b.WriteString("visit ")
		b.WriteString(strings.TrimRight(m.Prefix, "/"))
		b.WriteString("/*\n")
	}
	body := b.String()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(body))
	}
}
