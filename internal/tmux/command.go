package tmux

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

var (
	sessionNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	envNameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const (
	markerPrefix = "__TNR_"
	okTag        = "OK_"
	failTag      = "FAIL_"

	// listFormat fields are separated by '|', which session names cannot contain.
	listFormat = "#{session_name}|#{session_created}|#{session_attached}|#{session_windows}"
)

// ValidateName checks a session name.
func ValidateName(name string) error {
	if !sessionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}
	return nil
}

// sessionTarget matches the session name exactly rather than by prefix.
func sessionTarget(name string) string { return "=" + name }

// paneTarget addresses the active pane of the session.
func paneTarget(name string) string { return "=" + name + ":" }

func hasSessionCmd(name string) string {
	return "tmux has-session -t " + shellescape.Quote(sessionTarget(name))
}

func newSessionCmd(name, dir string) string {
	cmd := "tmux new-session -d -s " + shellescape.Quote(name)
	if dir != "" {
		cmd += " -c " + shellescape.Quote(dir)
	}
	return cmd
}

func setHistoryLimitCmd(name string, limit int) string {
	return fmt.Sprintf("tmux set-option -t %s history-limit %d", shellescape.Quote(sessionTarget(name)), limit)
}

func sendKeysCmd(name, line string) string {
	return "tmux send-keys -t " + shellescape.Quote(paneTarget(name)) + " " + shellescape.Quote(line) + " C-m"
}

// capturePaneCmd captures the whole history when lines <= 0, otherwise the
// last lines lines.
func capturePaneCmd(name string, lines int) string {
	start := "-"
	if lines > 0 {
		start = "-" + strconv.Itoa(lines)
	}
	return "tmux capture-pane -p -J -t " + shellescape.Quote(paneTarget(name)) + " -S " + start
}

func killSessionCmd(name string) string {
	return "tmux kill-session -t " + shellescape.Quote(sessionTarget(name))
}

func listSessionsCmd() string {
	return "tmux list-sessions -F " + shellescape.Quote(listFormat)
}

// scriptLine builds the line typed into the session:
//
//	[cd <dir> &&] [K=V ...] bash <script>[ ; <marker suffix>]
func scriptLine(script, dir string, env map[string]string, nonce string) (string, error) {
	var parts []string
	if dir != "" {
		parts = append(parts, "cd", shellescape.Quote(dir), "&&")
	}

	names := make([]string, 0, len(env))
	for k := range env {
		if !envNameRe.MatchString(k) {
			return "", fmt.Errorf("%w: %q", ErrInvalidEnvName, k)
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, k+"="+shellescape.Quote(env[k]))
	}

	parts = append(parts, "bash", shellescape.Quote(script))
	line := strings.Join(parts, " ")
	if nonce != "" {
		line += " ; " + markerSuffix(nonce)
	}
	return line, nil
}

// markerSuffix prints the completion marker for nonce. The marker literal
// is split in two quoted halves so the echoed command line never contains
// it verbatim.
func markerSuffix(nonce string) string {
	return fmt.Sprintf(`__tnr_ec=$? ; if [ "$__tnr_ec" -eq 0 ] ; then echo "%s""%s%s__" ; else echo "%s""%s%s__:$__tnr_ec" ; fi`,
		markerPrefix, okTag, nonce, markerPrefix, failTag, nonce)
}

func okMarker(nonce string) string   { return markerPrefix + okTag + nonce + "__" }
func failMarker(nonce string) string { return markerPrefix + failTag + nonce + "__:" }

// findMarker scans captured output for the markers of nonce. It returns the
// exit code and true once either marker is present.
func findMarker(output, nonce string) (int, bool) {
	ok := okMarker(nonce)
	fail := failMarker(nonce)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, ok) {
			return 0, true
		}
		if i := strings.Index(line, fail); i >= 0 {
			digits := strings.TrimSpace(line[i+len(fail):])
			end := 0
			for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
				end++
			}
			code, err := strconv.Atoi(digits[:end])
			if err != nil {
				// Marker without a readable status still means the script failed.
				code = 1
			}
			return code, true
		}
	}
	return 0, false
}

// newNonce returns 12 random hex characters.
func newNonce() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(b)
}
