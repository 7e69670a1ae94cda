// CLASSIFICATION: COMMUNITY
// Filename: path.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package static

import "strings"

// Paths handled by this package are slash separated. The OS backed FS
// converts at its boundary.

// Components splits path into its components. An absolute path yields "/"
// as its first component. Empty and "." components are dropped; ".." is
// kept verbatim so that it can only be resolved against the real
// filesystem.
func Components(path string) []string {
	elems := make([]string, 0, 16)
	if strings.HasPrefix(path, "/") {
		elems = append(elems, "/")
	}
	for path != "" {
		path = strings.TrimLeft(path, "/")
		if path == "" {
			break
		}
		elem := path
		if i := strings.IndexByte(path, '/'); i >= 0 {
			elem, path = path[:i], path[i:]
		} else {
			path = ""
		}
		if elem != "." {
			elems = append(elems, elem)
		}
	}
	return elems
}

// JoinComponents appends the components of rel to dir one at a time. It
// never cleans the result: "a/../b" stays "a/../b".
func JoinComponents(dir, rel string) string {
	buf := make([]byte, 0, len(dir)+len(rel)+1)
	buf = append(buf, dir...)
	for _, elem := range Components(strings.TrimLeft(rel, "/")) {
		if len(buf) > 0 && buf[len(buf)-1] != '/' {
			buf = append(buf, '/')
		}
		buf = append(buf, elem...)
	}
	return string(buf)
}

// Contains reports whether every component of candidate matches the
// component at the same position in canonical.
//
// The comparison is purely positional. A root containing a symlink, or a
// request path that passes through "..", never matches its canonical form;
// roots must therefore be canonical before they are served.
func Contains(candidate, canonical string) bool {
	want := Components(candidate)
	got := Components(canonical)
	if len(got) < len(want) {
		return false
	}
	for i, elem := range want {
		if got[i] != elem {
			return false
		}
	}
	return true
}

// NormalizePrefix returns p with a leading slash and no trailing slash.
// The root prefix is "/".
func NormalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if trimmed := strings.TrimRight(p, "/"); trimmed != "" {
		return trimmed
	}
	return "/"
}

// stripPrefix removes the first occurrence of prefix from path and trims
// the leading slashes of what remains.
func stripPrefix(path, prefix string) string {
	if prefix != "" {
		path = strings.Replace(path, prefix, "", 1)
	}
	return strings.TrimLeft(path, "/")
}
