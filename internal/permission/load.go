package permission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/gatekeeper/internal/normalize"
)

// Sources names the files rules are read from. Empty fields are skipped.
type Sources struct {
	// UserSettings is the assistant's global settings.json.
	UserSettings string
	// ProjectDir is where project settings are searched from. The nearest
	// ancestor holding a .claude directory contributes .claude/settings.json
	// and .claude/settings.local.json, scoped to that ancestor.
	ProjectDir string
	// RulesFile is the gatekeeper's own YAML rule list.
	RulesFile string
	// HomeDir bounds the project search and expands ~ in scopes.
	HomeDir string
}

// claudeSettings is the subset of the assistant's settings file we read.
type claudeSettings struct {
	Permissions struct {
		Allow []string `json:"allow"`
	} `json:"permissions"`
}

// rulesFile is the format of permissions.yaml:
//
//	rules:
//	  - pattern: "npm run build:*"
//	    scope: ~/src/app
type rulesFile struct {
	Rules []struct {
		Pattern string `yaml:"pattern"`
		Scope   string `yaml:"scope"`
	} `yaml:"rules"`
}

// Load reads every source into a Snapshot. A missing file contributes
// nothing. An unreadable or malformed file is skipped as a whole and recorded
// in Warnings; Load itself never fails.
func Load(src Sources) *Snapshot {
	snap := &Snapshot{}

	if src.UserSettings != "" {
		snap.addSettings(src.UserSettings, "")
	}

	if root := findProjectRoot(src.ProjectDir, src.HomeDir); root != "" {
		for _, name := range []string{"settings.json", "settings.local.json"} {
			snap.addSettings(filepath.Join(root, ".claude", name), root)
		}
	}

	if src.RulesFile != "" {
		snap.addRulesFile(src.RulesFile, src.HomeDir)
	}

	return snap
}

func (s *Snapshot) warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func readOptional(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *Snapshot) addSettings(path, scope string) {
	data, ok, err := readOptional(path)
	if err != nil {
		s.warn("permission source %s unreadable: %v", path, err)
		return
	}
	if !ok {
		return
	}

	var settings claudeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.warn("permission source %s malformed: %v", path, err)
		return
	}

	for _, entry := range settings.Permissions.Allow {
		pattern, isBash, err := parseToolEntry(entry)
		if err != nil {
			s.warn("permission source %s: %v", path, err)
			continue
		}
		if !isBash {
			continue
		}
		if r, ok := NewRule(pattern, scope, path); ok {
			s.Rules = append(s.Rules, r)
		}
	}
}

// parseToolEntry extracts the pattern from "Bash(<pattern>)". A bare "Bash"
// approves every command and is returned as "*". Entries for other tools
// report isBash=false.
func parseToolEntry(entry string) (pattern string, isBash bool, err error) {
	entry = strings.TrimSpace(entry)
	if entry == "Bash" {
		return "*", true, nil
	}
	if !strings.HasPrefix(entry, "Bash(") {
		return "", false, nil
	}
	if !strings.HasSuffix(entry, ")") {
		return "", false, fmt.Errorf("malformed entry %q", entry)
	}
	pattern = strings.TrimSpace(entry[len("Bash(") : len(entry)-1])
	if pattern == "" {
		return "", false, fmt.Errorf("empty pattern in %q", entry)
	}
	return pattern, true, nil
}

func (s *Snapshot) addRulesFile(path, homeDir string) {
	data, ok, err := readOptional(path)
	if err != nil {
		s.warn("permission source %s unreadable: %v", path, err)
		return
	}
	if !ok {
		return
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		s.warn("permission source %s malformed: %v", path, err)
		return
	}

	base := filepath.Dir(path)
	for i, entry := range rf.Rules {
		scope := ""
		if entry.Scope != "" {
			scope = normalize.ExpandPath(entry.Scope, base, homeDir)
		}
		r, ok := NewRule(entry.Pattern, scope, path)
		if !ok {
			s.warn("permission source %s: rule %d has no pattern", path, i+1)
			continue
		}
		s.Rules = append(s.Rules, r)
	}
}

// findProjectRoot walks up from dir to the nearest directory containing
// .claude, stopping before homeDir (whose .claude holds user settings) and
// at the filesystem root.
func findProjectRoot(dir, homeDir string) string {
	if dir == "" {
		return ""
	}
	dir = filepath.Clean(dir)
	home := ""
	if homeDir != "" {
		home = filepath.Clean(homeDir)
	}
	for {
		if dir == home {
			return ""
		}
		if info, err := os.Stat(filepath.Join(dir, ".claude")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
