// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import "strings"

// =============================================================================
// MODEL/PROVIDER SELECTION
// =============================================================================

// Selection is the model/provider choice for outgoing turns.
//
// The zero value is "automatic": the server chooses a provider per
// request and the client sends no selection fields at all. A concrete
// selection names a model, an ordered provider candidate list, and the
// currently active candidate.
//
// The whole selection round-trips through a single encoded string
// ("model|p1,p2,p3"), the same format the web client persisted.
type Selection struct {
	Model     string
	Providers []string

	// active indexes Providers; meaningful only for concrete selections.
	active int
}

// ParseSelection decodes an encoded selection string. Empty strings,
// "auto", and strings without a provider list all mean automatic.
func ParseSelection(encoded string) Selection {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" || encoded == "auto" {
		return Selection{}
	}

	parts := strings.SplitN(encoded, "|", 2)
	if len(parts) != 2 {
		return Selection{}
	}

	var providers []string
	for _, p := range strings.Split(parts[1], ",") {
		if p = strings.TrimSpace(p); p != "" {
			providers = append(providers, p)
		}
	}
	if parts[0] == "" || len(providers) == 0 {
		return Selection{}
	}

	return Selection{Model: parts[0], Providers: providers}
}

// Encode returns the persistable string form. Automatic encodes as "auto".
func (s Selection) Encode() string {
	if s.IsAuto() {
		return "auto"
	}
	return s.Model + "|" + strings.Join(s.Providers, ",")
}

// IsAuto reports whether the server chooses the provider.
func (s Selection) IsAuto() bool {
	return s.Model == "" || len(s.Providers) == 0
}

// ActiveProvider returns the currently active provider candidate, or ""
// for automatic selections.
func (s Selection) ActiveProvider() string {
	if s.IsAuto() {
		return ""
	}
	return s.Providers[s.active]
}

// Advance rotates the active provider circularly. Called after an
// application-level failure as a hint for the next attempt; it never
// triggers a retry by itself. Returns the new active provider.
func (s *Selection) Advance() string {
	if s.IsAuto() {
		return ""
	}
	s.active = (s.active + 1) % len(s.Providers)
	return s.Providers[s.active]
}

// Adopt switches the active provider to the one the server reports it
// actually used, when that provider is among the candidates. Returns true
// if the selection changed its active candidate.
func (s *Selection) Adopt(used string) bool {
	if s.IsAuto() || used == "" {
		return false
	}
	for i, p := range s.Providers {
		if p == used {
			changed := s.active != i
			s.active = i
			return changed
		}
	}
	return false
}
