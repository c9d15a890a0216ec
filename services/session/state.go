// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import "strings"

// splitStateDelta partitions a state delta into app-, user-, and
// session-scope components by the key-prefix convention. Prefixes are
// stripped from the scoped keys; unprefixed keys are session scope.
func splitStateDelta(state map[string]any) (app, user, sess map[string]any) {
	app = make(map[string]any)
	user = make(map[string]any)
	sess = make(map[string]any)

	for key, value := range state {
		switch {
		case strings.HasPrefix(key, AppStatePrefix):
			app[strings.TrimPrefix(key, AppStatePrefix)] = value
		case strings.HasPrefix(key, UserStatePrefix):
			user[strings.TrimPrefix(key, UserStatePrefix)] = value
		default:
			sess[key] = value
		}
	}
	return app, user, sess
}

// mergeState recomposes the three scopes into the single mapping
// exposed on a Session. App and user keys get their prefixes back;
// session keys are merged last. Scopes never collide because app and
// user keys always carry prefixes absent from session keys.
func mergeState(app, user, sess map[string]any) map[string]any {
	merged := make(map[string]any, len(app)+len(user)+len(sess))

	for key, value := range app {
		merged[AppStatePrefix+key] = value
	}
	for key, value := range user {
		merged[UserStatePrefix+key] = value
	}
	for key, value := range sess {
		merged[key] = value
	}
	return merged
}

// stateFromDoc extracts the "state" field of a state document as a
// mutable map. Missing or malformed state yields an empty map.
func stateFromDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	state, ok := doc["state"].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return state
}

// applyDelta merges a delta into a state map, last write wins per key.
func applyDelta(state, delta map[string]any) map[string]any {
	for key, value := range delta {
		state[key] = value
	}
	return state
}
