// Package cmdline holds helpers shared by the downloader adapters for
// building and displaying command lines.
package cmdline

import (
	"net/url"
	"strings"
)

// Format renders a command line for logs, single-quoting any argument a
// POSIX shell would split or expand.
func Format(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(bin))
	for _, arg := range args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

const shellSpecial = " \t\n'\"\\$`!*?[]{}()<>|&;#~"

func quote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, shellSpecial) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// SanitizeURL drops the query and fragment, which often carry tracking or
// session parameters, before a link is logged.
func SanitizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

// ContainsArg reports whether args already holds one of the given flags,
// either bare or in --flag=value form.
func ContainsArg(args []string, flags ...string) bool {
	for _, candidate := range args {
		trimmed := strings.TrimSpace(candidate)
		for _, flag := range flags {
			if trimmed == flag || strings.HasPrefix(trimmed, flag+"=") {
				return true
			}
		}
	}
	return false
}
