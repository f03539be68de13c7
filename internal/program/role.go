// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Role classification computed from a feature set's
// business-activity text.
//
// Why classify once?
//
// The activity text is the only place a Fable author marks a feature set as
// the entry point, an exit handler, an event handler or a repository
// observer. Matching those spellings is string work, and doing it in every
// consumer invites drift. The classification runs exactly once, here, while
// the model is built; the generator and the runtime registration consume the
// typed result.
package program

import "strings"

// Activity spellings recognized by the classifier. The handler suffixes for
// sockets, files and the two exit kinds are reserved: they never register as
// plain event handlers.
const (
	ActivityEntry = "App: Start"

	suffixHandler        = " Handler"
	suffixSuccessHandler = "Success Handler"
	suffixErrorHandler   = "Error Handler"
	suffixSocketHandler  = "Socket Handler"
	suffixFileHandler    = "File Handler"

	observerMarker = " Observer"
	repositorySuf  = "-repository"
)

// RoleKind enumerates what a feature set is for.
type RoleKind int

const (
	// RolePlain is a feature set only ever invoked by name.
	RolePlain RoleKind = iota
	// RoleEntry is the program entry point.
	RoleEntry
	// RoleExitSuccess runs during clean shutdown.
	RoleExitSuccess
	// RoleExitError runs during failure shutdown.
	RoleExitError
	// RoleHandler runs when a matching event is emitted; Key is the event type.
	RoleHandler
	// RoleSocketHandler runs on an incoming socket event; Key is the event name.
	RoleSocketHandler
	// RoleFileHandler runs on a watched-file change; Key is the watch key.
	RoleFileHandler
	// RoleObserver runs on changes to a named repository; Key is the repository.
	RoleObserver
)

var roleKindNames = map[RoleKind]string{
	RolePlain:         "plain",
	RoleEntry:         "entry",
	RoleExitSuccess:   "exit-success",
	RoleExitError:     "exit-error",
	RoleHandler:       "handler",
	RoleSocketHandler: "socket-handler",
	RoleFileHandler:   "file-handler",
	RoleObserver:      "observer",
}

// String returns the lowercase role name used in logs.
func (k RoleKind) String() string {
	if name, ok := roleKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Role is the tagged classification of a feature set. Key carries the event
// type, socket event name, file watch key or repository name, depending on
// the kind; it is empty for the other kinds.
type Role struct {
	Kind RoleKind
	Key  string
}

// ClassifyActivity derives the Role from a business-activity string. Reserved
// handler spellings win over the generic " Handler" suffix; the entry marker
// wins over everything.
func ClassifyActivity(activity string) Role {
	text := strings.TrimSpace(activity)

	if text == ActivityEntry {
		return Role{Kind: RoleEntry}
	}
	if hasWordSuffix(text, suffixSuccessHandler) {
		return Role{Kind: RoleExitSuccess}
	}
	if hasWordSuffix(text, suffixErrorHandler) {
		return Role{Kind: RoleExitError}
	}
	if hasWordSuffix(text, suffixSocketHandler) {
		return Role{Kind: RoleSocketHandler, Key: prefixBefore(text, suffixSocketHandler)}
	}
	if hasWordSuffix(text, suffixFileHandler) {
		return Role{Kind: RoleFileHandler, Key: prefixBefore(text, suffixFileHandler)}
	}
	if strings.HasSuffix(text, suffixHandler) {
		return Role{Kind: RoleHandler, Key: prefixBefore(text, suffixHandler)}
	}
	if key, ok := observerRepository(text); ok {
		return Role{Kind: RoleObserver, Key: key}
	}
	return Role{Kind: RolePlain}
}

// hasWordSuffix reports whether text ends with suffix on a word boundary:
// either the whole string is the suffix, or a space precedes it.
func hasWordSuffix(text, suffix string) bool {
	if !strings.HasSuffix(text, suffix) {
		return false
	}
	if len(text) == len(suffix) {
		return true
	}
	return text[len(text)-len(suffix)-1] == ' '
}

// prefixBefore returns the trimmed text preceding the suffix. That prefix is
// the registration key for handler roles.
func prefixBefore(text, suffix string) string {
	return strings.TrimSpace(strings.TrimSuffix(text, suffix))
}

// observerRepository reports whether the activity text marks a repository
// observer: it must contain the " Observer" marker and a token ending in
// "-repository". The token is the registration key.
func observerRepository(text string) (string, bool) {
	if !strings.Contains(text, observerMarker) {
		return "", false
	}
	for _, token := range strings.Fields(text) {
		if strings.HasSuffix(token, repositorySuf) && len(token) > len(repositorySuf) {
			return token, true
		}
	}
	return "", false
}
