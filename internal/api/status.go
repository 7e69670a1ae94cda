// CLASSIFICATION: COMMUNITY
// Filename: status.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"servedir/internal/static"
)

// HealthSource reports the serving status of a mount.
type HealthSource interface {
	Status(service string) string
}

// StatusResponse describes the server state.
type StatusResponse struct {
	Uptime string         `json:"uptime"`
	Status string         `json:"status"`
	Mounts []MountSummary `json:"mounts"`
}

// MountSummary provides a JSON-friendly mount snapshot.
type MountSummary struct {
	Prefix string `json:"prefix"`
	Root   string `json:"root"`
	Health string `json:"health,omitempty"`
}

// Status writes the uptime and the configured mounts.
func Status(start time.Time, mounts []static.Mount, health HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := make([]MountSummary, 0, len(mounts))
		status := "ok"
		for _, m := range mounts {
			s := MountSummary{Prefix: m.Prefix, Root: m.Root}
			if health != nil {
				s.Health = health.Status(m.Prefix)
				if s.Health != "SERVING" {
					status = "degraded"
				}
			}
			summaries = append(summaries, s)
		}
		resp := StatusResponse{
			Uptime: time.Since(start).Round(time.Second).String(),
			Status: status,
			Mounts: summaries,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
