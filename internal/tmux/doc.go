// Package tmux drives long-running scripts inside remote tmux sessions.
//
// The remote tmux server is the only source of truth: nothing about
// sessions is tracked locally. A script is typed into a session with
// send-keys; when completion detection is requested, the typed line is
// followed by a suffix that prints a success or failure marker carrying a
// per-run nonce. Waiting polls capture-pane until one of the two markers
// appears or the timeout passes. A timeout ends the local wait only, the
// remote script keeps running.
package tmux
