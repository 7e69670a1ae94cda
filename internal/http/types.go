// CLASSIFICATION: COMMUNITY
// Filename: types.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package http

import (
	"time"

	"golang.org/x/time/rate"

	"servedir/internal/static"
)

// Logger abstracts logging for the server.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds server configuration.
type Config struct {
	Listen       string
	HealthListen string
	Mounts       []static.Mount
	AccessLog    string
	// RateLimit is the per-client request rate on mounts; zero disables it.
	RateLimit       rate.Limit
	RateBurst       int
	Compress        bool
	Watch           bool
	ShutdownTimeout time.Duration
	// FS backs every mount; defaults to static.OSFS.
	FS     static.FS
	Logger Logger
}
