package deny

import (
	"fmt"
	"strings"

	"github.com/gzhole/gatekeeper/internal/normalize"
	"github.com/gzhole/gatekeeper/internal/patterns"
)

// call is a simple command with wrappers stripped and flags split out.
// Short flag clusters are split per character ("-rf" -> r, f) and long
// flags keep their name ("--force=yes" -> force).
type call struct {
	exe   string
	flags map[string]string
	args  []string
}

// wrappers run their argument as a command without changing its meaning
// for our purposes.
var wrappers = map[string]bool{
	"sudo": true, "doas": true, "env": true, "nohup": true, "nice": true,
	"time": true, "command": true, "builtin": true, "exec": true,
	"xargs": true, "timeout": true, "stdbuf": true, "ionice": true,
}

var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"ksh": true, "fish": true, "csh": true, "tcsh": true,
}

func parseCall(words []string) call {
	for len(words) > 0 {
		exe := baseName(words[0])
		if exe == "timeout" && len(words) > 1 {
			// timeout [flags] DURATION cmd...
			words = skipFlags(words[1:])
			if len(words) > 0 {
				words = words[1:]
			}
			continue
		}
		if !wrappers[exe] {
			break
		}
		words = skipFlags(words[1:])
		for len(words) > 0 && strings.Contains(words[0], "=") && !strings.HasPrefix(words[0], "-") {
			words = words[1:]
		}
	}

	c := call{flags: make(map[string]string)}
	if len(words) == 0 {
		return c
	}
	c.exe = baseName(words[0])
	for _, w := range words[1:] {
		switch {
		case strings.HasPrefix(w, "--") && len(w) > 2:
			name, value, _ := strings.Cut(w[2:], "=")
			c.flags[name] = value
		case strings.HasPrefix(w, "-") && len(w) > 1 && c.exe != "dd":
			for _, ch := range w[1:] {
				c.flags[string(ch)] = ""
			}
		default:
			c.args = append(c.args, w)
		}
	}
	return c
}

func skipFlags(words []string) []string {
	for len(words) > 0 && strings.HasPrefix(words[0], "-") {
		words = words[1:]
	}
	return words
}

func baseName(word string) string {
	if i := strings.LastIndex(word, "/"); i >= 0 {
		return word[i+1:]
	}
	return word
}

func (c call) has(names ...string) bool {
	for _, n := range names {
		if _, ok := c.flags[n]; ok {
			return true
		}
	}
	return false
}

// checkSegment catches spellings that line-oriented signatures miss:
// separated or reordered flags ("rm -r -f", "rm -R --force"), dd operands in
// any order, and symbolic chmod modes.
func checkSegment(seg normalize.Segment) (Match, bool) {
	if len(seg.Words) > 0 {
		switch baseName(seg.Words[0]) {
		case "sudo", "doas":
			return Match{
				ID:       "sudo",
				Category: patterns.CategoryPrivilegeEscalation,
				Reason:   "runs a command with elevated privileges (sudo/doas/pkexec)",
			}, true
		}
	}

	c := parseCall(seg.Words)
	switch c.exe {
	case "rm":
		if c.has("r", "R", "recursive") && c.has("f", "force") {
			return Match{
				ID:       "rm-rf",
				Category: patterns.CategoryRecursiveDelete,
				Reason:   "recursive force-delete with rm",
			}, true
		}
	case "dd":
		for _, a := range c.args {
			if of, ok := strings.CutPrefix(a, "of="); ok && isBlockDevice(of) {
				return Match{
					ID:       "dd-device",
					Category: patterns.CategoryDiskWipe,
					Reason:   fmt.Sprintf("dd writing directly to block device %s", of),
				}, true
			}
		}
	case "chmod":
		for _, a := range c.args {
			if isWorldWritableMode(a) {
				return Match{
					ID:       "chmod-world-writable",
					Category: patterns.CategoryUnsafePermissions,
					Reason:   fmt.Sprintf("grants world-writable permissions (%s)", a),
				}, true
			}
		}
	case "su", "pkexec":
		return Match{
			ID:       c.exe,
			Category: patterns.CategoryPrivilegeEscalation,
			Reason:   "switches user identity with " + c.exe,
		}, true
	}
	return Match{}, false
}

// inlineScript returns the code passed to a shell with -c, if any.
func inlineScript(seg normalize.Segment) string {
	c := parseCall(seg.Words)
	if !shellInterpreters[c.exe] || !c.has("c") || len(c.args) == 0 {
		return ""
	}
	return c.args[0]
}

func isBlockDevice(path string) bool {
	for _, prefix := range []string{
		"/dev/sd", "/dev/hd", "/dev/nvme", "/dev/vd", "/dev/xvd",
		"/dev/md", "/dev/dm-", "/dev/loop", "/dev/mmcblk", "/dev/disk", "/dev/rdisk",
	} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// isWorldWritableMode reports whether a chmod mode grants write to others.
func isWorldWritableMode(mode string) bool {
	mode = strings.ToLower(mode)
	if len(mode) >= 3 && strings.Trim(mode, "01234567") == "" {
		switch mode[len(mode)-1] {
		case '2', '3', '6', '7':
			return true
		}
		return false
	}
	for _, clause := range strings.Split(mode, ",") {
		who, perms, ok := cutOp(clause)
		if !ok || strings.Trim(who, "ugoa") != "" || !strings.Contains(perms, "w") {
			continue
		}
		if who == "" || strings.ContainsAny(who, "ao") {
			return true
		}
	}
	return false
}

func cutOp(clause string) (who, perms string, ok bool) {
	i := strings.IndexAny(clause, "+=")
	if i < 0 {
		return "", "", false
	}
	return clause[:i], clause[i+1:], true
}
