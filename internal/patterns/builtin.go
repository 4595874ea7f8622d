package patterns

// cmdPos anchors a signature at a command position: the start of the input,
// after a separator or substitution opener, after find -exec, and after
// transparent wrappers (env assignments, env, nohup, xargs, sudo, ...).
// Anchoring keeps "git commit -m 'mention rm -rf'" from matching.
const cmdPos = `(?:^|[\n;&|(){}!` + "`" + `]|\$\(|-exec(?:dir)?\s|-ok\s)\s*` +
	`(?:(?:[A-Za-z_][A-Za-z0-9_]*=\S*|env|exec|nohup|time|command|builtin|nice|xargs|then|do|else|sudo|doas)\s+(?:-\S*\s+)*)*`

const shells = `(?:sh|bash|zsh|dash|ksh|fish|python[0-9.]*|perl|ruby|node)`

const homeDir = `(?:~|\$HOME|\$\{HOME\}|/home/[^/\s]+|/Users/[^/\s]+|/root)`

// Default returns the built-in signature table.
func Default() *Table {
	return &Table{
		Version:        Version,
		Deny:           defaultDeny(),
		Allowlist:      defaultAllowlist(),
		ProtectedPaths: defaultProtectedPaths(),
	}
}

func defaultDeny() []DenySignature {
	return []DenySignature{
		// privilege escalation
		{
			ID:       "sudo",
			Category: CategoryPrivilegeEscalation,
			Reason:   "runs a command with elevated privileges (sudo/doas/pkexec)",
			Regex:    `(?:^|[\n;&|(){}!` + "`" + `]|\$\()\s*(?:[A-Za-z_][A-Za-z0-9_]*=\S*\s+)*(?:sudo|doas|pkexec|run0)(?:\s|$)`,
		},
		{
			ID:       "su",
			Category: CategoryPrivilegeEscalation,
			Reason:   "switches user identity with su",
			Regex:    cmdPos + `su(?:\s|$)`,
		},

		// recursive force delete
		{
			ID:       "rm-rf",
			Category: CategoryRecursiveDelete,
			Reason:   "recursive force-delete with rm",
			Regex:    cmdPos + `(?:/bin/|/usr/bin/)?rm\s+(?:-\S+\s+)*(?:-[a-zA-Z]*[rR][a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*[rR])`,
		},
		{
			ID:       "rm-rf-long",
			Category: CategoryRecursiveDelete,
			Reason:   "recursive force-delete with rm (long flags)",
			Regex:    cmdPos + `(?:/bin/|/usr/bin/)?rm\s+(?:\S+\s+)*(?:--recursive\s+(?:\S+\s+)*--force|--force\s+(?:\S+\s+)*--recursive)\b`,
		},

		// disk wipe
		{
			ID:       "dd-device",
			Category: CategoryDiskWipe,
			Reason:   "dd writing directly to a block device",
			Regex:    cmdPos + `dd\s[^;&|]*\bof=/dev/(?:sd|hd|vd|xvd|nvme|disk|rdisk|mmcblk|md|dm-|loop)`,
		},
		{
			ID:       "mkfs",
			Category: CategoryDiskWipe,
			Reason:   "formats a filesystem",
			Regex:    cmdPos + `mkfs(?:\.[a-z0-9]+)?(?:\s|$)`,
		},
		{
			ID:       "wipefs",
			Category: CategoryDiskWipe,
			Reason:   "erases filesystem or partition signatures",
			Regex:    cmdPos + `(?:wipefs|sgdisk\s+(?:-\S+\s+)*--zap-all|blkdiscard)(?:\s|$)`,
		},
		{
			ID:       "shred-device",
			Category: CategoryDiskWipe,
			Reason:   "shreds a block device",
			Regex:    cmdPos + `shred\s[^;&|]*/dev/`,
		},
		{
			ID:       "redirect-device",
			Category: CategoryDiskWipe,
			Reason:   "redirects output onto a block device",
			Regex:    `>\s*/dev/(?:sd|hd|vd|xvd|nvme|disk|rdisk|mmcblk)`,
		},
		{
			ID:       "diskutil-erase",
			Category: CategoryDiskWipe,
			Reason:   "erases a disk with diskutil",
			Regex:    cmdPos + `diskutil\s+(?:erase\w*|zeroDisk|randomDisk|secureErase|partitionDisk)\b`,
		},

		// reverse shells
		{
			ID:       "dev-tcp",
			Category: CategoryReverseShell,
			Reason:   "opens a raw network socket through /dev/tcp or /dev/udp",
			Regex:    `/dev/(?:tcp|udp)/`,
		},
		{
			ID:       "netcat-exec",
			Category: CategoryReverseShell,
			Reason:   "netcat with command execution",
			Regex:    cmdPos + `(?:nc|ncat|netcat)\s[^;&|]*-[a-zA-Z]*[ec](?:\s|$)`,
		},
		{
			ID:       "socat-exec",
			Category: CategoryReverseShell,
			Reason:   "socat wired to a process",
			Regex:    `(?i)\bsocat\b[^;&|]*\b(?:exec|system):`,
		},
		{
			ID:       "interactive-shell-redirect",
			Category: CategoryReverseShell,
			Reason:   "interactive shell with redirected file descriptors",
			Regex:    `\b(?:ba|z|k)?sh\s+-i\s*[<>]&`,
		},
		{
			ID:       "mkfifo-netcat",
			Category: CategoryReverseShell,
			Reason:   "named pipe relayed through netcat",
			Regex:    `\bmkfifo\b.*\b(?:nc|ncat|netcat|telnet)\b`,
		},
		{
			ID:       "socket-spawn",
			Category: CategoryReverseShell,
			Reason:   "scripted socket handing a shell to a remote peer",
			Regex:    `socket\.socket\(.*(?:subprocess|pty\.spawn|os\.dup2)`,
		},

		// destructive database statements
		{
			ID:       "sql-drop",
			Category: CategoryDestructiveSQL,
			Reason:   "drops a database object",
			Regex:    `(?i)\bdrop\s+(?:table|database|schema|collection)\b`,
		},
		{
			ID:       "sql-truncate",
			Category: CategoryDestructiveSQL,
			Reason:   "truncates a table",
			Regex:    `(?i)\btruncate\s+table\b`,
		},
		{
			ID:       "sql-delete-all",
			Category: CategoryDestructiveSQL,
			Reason:   "DELETE without a WHERE clause",
			Regex:    `(?i)\bdelete\s+from\s+[\w."` + "`" + `]+\s*(?:;|"|'|$)`,
		},
		{
			ID:       "mongo-drop",
			Category: CategoryDestructiveSQL,
			Reason:   "drops a MongoDB database",
			Regex:    `\bdb\.dropDatabase\(`,
		},

		// encoded payloads that are decoded and executed
		{
			ID:       "decode-pipe-shell",
			Category: CategoryEncodedPayload,
			Reason:   "decodes an encoded payload straight into an interpreter",
			Regex:    `(?:base64\s+(?:-\S+\s+)*(?:-[a-zA-Z]*[dD]\b|--decode)|xxd\s+(?:-\S+\s+)*-r\w*|openssl\s+(?:enc\s+)?[^|;&]*-d\b)[^;&]*\|\s*(?:sudo\s+)?` + shells + `\b`,
		},
		{
			ID:       "decode-eval",
			Category: CategoryEncodedPayload,
			Reason:   "evaluates a decoded payload",
			Regex:    `(?:\beval|\bsource|(?:^|[;&|]\s*)\.|\b` + shells + `\s+-c)\s+["']?(?:\$\(|` + "`" + `)[^)` + "`" + `]*(?:base64\s+(?:-\S+\s+)*(?:-[a-zA-Z]*[dD]\b|--decode)|xxd\s+(?:-\S+\s+)*-r)`,
		},

		// unsafe permission grants
		{
			ID:       "chmod-world-writable",
			Category: CategoryUnsafePermissions,
			Reason:   "grants world-writable permissions",
			Regex:    cmdPos + `chmod\s+(?:-\S+\s+)*(?:[01]?777|[0-7]?[0-7][0-7][2367]|[ugo]*a[ugo]*[+=][rxXt]*w|[ug]*o[ug]*[+=][rxXt]*w)(?:\s|$)`,
		},
		{
			ID:       "chmod-setuid",
			Category: CategoryUnsafePermissions,
			Reason:   "sets the setuid/setgid bit",
			Regex:    cmdPos + `chmod\s+(?:-\S+\s+)*(?:[2467][0-7]{3}|[ugoa]*[+=][rwxXt]*s)(?:\s|$)`,
		},

		// process kill-all
		{
			ID:       "kill-all-processes",
			Category: CategoryKillAll,
			Reason:   "signals every process the user can reach (kill -1)",
			Regex:    cmdPos + `kill\s+(?:-\S+\s+)*-1\s*(?:$|[;&|)])`,
		},
		{
			ID:       "killall",
			Category: CategoryKillAll,
			Reason:   "kills processes by name en masse",
			Regex:    cmdPos + `(?:killall5?|pkill\s+(?:-\S+\s+)*-u)(?:\s|$)`,
		},

		// crontab tampering
		{
			ID:       "crontab-modify",
			Category: CategoryCrontab,
			Reason:   "edits, replaces or removes the crontab",
			Regex:    cmdPos + `crontab\s+(?:-u\s+\S+\s+)?(?:-[a-zA-Z]*[reis][a-zA-Z]*\b|[^-\s;&|]\S*|-\s*$)`,
		},
		{
			ID:       "crontab-stdin",
			Category: CategoryCrontab,
			Reason:   "installs a crontab from a pipe",
			Regex:    `\|\s*crontab(?:\s+-u\s+\S+)?\s*(?:-\s*)?(?:$|[;&|])`,
		},
		{
			ID:       "cron-dir-write",
			Category: CategoryCrontab,
			Reason:   "writes into a system cron directory",
			Regex:    `(?:>>?\s*|\b(?:tee|cp|mv|ln|install)\b[^;&|]*\s)(?:/etc/cron|/var/spool/cron|/etc/anacrontab)`,
		},

		// credential and secret paths
		{
			ID:       "secret-dotdir",
			Category: CategoryCredentialAccess,
			Reason:   "touches a credential directory or file in the home directory",
			Regex:    homeDir + `/\.(?:ssh|aws|gnupg|kube|azure|netrc|git-credentials|npmrc|pypirc|docker/config\.json|config/gcloud|config/gh/hosts\.yml)\b`,
		},
		{
			ID:       "system-secret-file",
			Category: CategoryCredentialAccess,
			Reason:   "touches a system credential file",
			Regex:    `/etc/(?:shadow|gshadow|sudoers|master\.passwd)\b`,
		},
		{
			ID:       "private-key-file",
			Category: CategoryCredentialAccess,
			Reason:   "reads an SSH private key",
			Regex:    `\bid_(?:rsa|dsa|ecdsa|ed25519)(?:$|[\s"';&|)])`,
		},
	}
}

func defaultProtectedPaths() []string {
	return []string{
		"~/.ssh/**",
		"~/.aws/**",
		"~/.gnupg/**",
		"~/.kube/**",
		"~/.azure/**",
		"~/.config/gcloud/**",
		"~/.docker/config.json",
		"~/.netrc",
		"~/.git-credentials",
		"/etc/shadow",
		"/etc/gshadow",
		"/etc/sudoers",
		"/etc/sudoers.d/**",
	}
}

// gitWrites rejects read-only git subcommands asked to write files or run
// external programs.
const gitWrites = `\s(?:--output\S*|-O\S*|--open-files-in-pager\S*|--ext-diff)`

// lintFix rejects linters invoked in rewrite mode.
const lintFix = `\s(?:--fix\S*|--write|-w)(?:\s|$)`

func word(prefix string) AllowlistEntry {
	return AllowlistEntry{PrefixOrPattern: prefix, RequiresExactSubcommand: true}
}

func wordExcept(prefix, exclude string) AllowlistEntry {
	return AllowlistEntry{PrefixOrPattern: prefix, RequiresExactSubcommand: true, Exclude: exclude}
}

func pattern(re string) AllowlistEntry {
	return AllowlistEntry{PrefixOrPattern: re}
}

func patternExcept(re, exclude string) AllowlistEntry {
	return AllowlistEntry{PrefixOrPattern: re, Exclude: exclude}
}

func defaultAllowlist() []AllowlistEntry {
	return []AllowlistEntry{
		// git, read-only subcommands
		word("git status"),
		wordExcept("git diff", gitWrites),
		wordExcept("git log", gitWrites),
		wordExcept("git show", gitWrites),
		word("git blame"),
		word("git shortlog"),
		word("git describe"),
		word("git rev-parse"),
		word("git ls-files"),
		word("git ls-tree"),
		word("git cat-file"),
		word("git merge-base"),
		wordExcept("git grep", gitWrites),
		wordExcept("git fetch", `\s(?:--upload-pack\b|-u\b|--update-head-ok)|\bext::`),
		word("git reflog"),
		word("git stash list"),
		word("git stash show"),
		word("git worktree list"),
		word("git config --get"),
		word("git config --list"),
		word("git config -l"),
		wordExcept("git branch", `\s(?:-[a-zA-Z]*[dDmMcCfu]\b|--(?:delete|move|copy|force|set-upstream\S*|unset-upstream|edit-description))`),
		wordExcept("git tag", `\s(?:-[a-zA-Z]*[dfsau]\b|--(?:delete|force|sign|annotate))|^git tag\s+[^-\s]`),
		wordExcept("git remote", `\s(?:add|remove|rm|rename|set-url|set-head|set-branches|prune|update)\b`),

		// go toolchain
		word("go test"),
		word("go vet"),
		word("go build"),
		word("go list"),
		word("go version"),
		word("go env"),
		word("go doc"),
		wordExcept("golangci-lint run", lintFix),
		word("staticcheck"),
		word("gofmt -l"),
		word("gofmt -d"),

		// javascript
		word("npm test"),
		word("npm run test"),
		word("npm run lint"),
		word("npm run typecheck"),
		word("npm ls"),
		word("npm outdated"),
		word("npm view"),
		word("yarn test"),
		word("yarn lint"),
		word("pnpm test"),
		word("pnpm lint"),
		word("npx tsc --noEmit"),
		word("npx jest"),
		word("npx vitest run"),
		word("tsc --noEmit"),

		// rust
		word("cargo test"),
		word("cargo check"),
		word("cargo build"),
		wordExcept("cargo clippy", lintFix),
		word("cargo fmt --check"),
		word("cargo tree"),

		// python
		word("pytest"),
		word("python -m pytest"),
		word("python3 -m pytest"),
		word("python -m unittest"),
		word("python3 -m unittest"),
		wordExcept("ruff check", lintFix),
		word("ruff format --check"),
		word("black --check"),
		word("mypy"),
		word("flake8"),
		word("pylint"),
		word("pip list"),
		word("pip show"),
		word("pip freeze"),

		// make targets that conventionally only verify
		word("make test"),
		word("make check"),
		word("make lint"),

		// containers and clusters, read-only
		word("docker ps"),
		word("docker images"),
		word("docker logs"),
		word("docker inspect"),
		word("docker version"),
		word("kubectl get"),
		word("kubectl describe"),
		word("kubectl logs"),
		wordExcept("kubectl config view", `--raw`),
		word("kubectl config current-context"),

		// github cli, read-only
		word("gh pr view"),
		word("gh pr list"),
		word("gh pr diff"),
		word("gh pr checks"),
		word("gh issue view"),
		word("gh issue list"),
		word("gh run view"),
		word("gh run list"),
		word("gh repo view"),
		word("gh status"),

		// generic read-only inspection
		pattern(`^(?:ls|ll|la|pwd|whoami|id|groups|hostname|uname|date|uptime|which|type|stat|wc|du|df|realpath|dirname|basename|nproc|arch|locale|true|false)(?:\s|$)`),
		pattern(`^(?:cat|head|tail|more|grep|egrep|fgrep|diff|cmp|comm|cut|column|nl|tac|rev|jq|strings|od|hexdump|md5sum|sha1sum|sha256sum|shasum|cksum|readlink)(?:\s|$)`),

		// Inspection tools with flags that run a program or write a file.
		patternExcept(`^rg(?:\s|$)`, `\s--pre(?:-glob)?\b`),
		patternExcept(`^(?:ag|ack)(?:\s|$)`, `\s--(?:pager|output)\b`),
		patternExcept(`^less(?:\s|$)`, `\s(?:-[a-zA-Z]*[oO]|--log-file|--LOG-FILE)`),
		patternExcept(`^tree(?:\s|$)`, `\s(?:-[a-zA-Z]*[oR]|--fromfile)`),
		patternExcept(`^file(?:\s|$)`, `\s(?:-[a-zA-Z]*C|--compile)`),
		pattern(`^(?:echo|printf)(?:\s|$)`),
		pattern(`^(?:ps|pgrep)(?:\s|$)`),
		patternExcept(`^sort(?:\s|$)`, `\s(?:-[a-zA-Z]*o|--output|--compress-program)`),
		patternExcept(`^find(?:\s|$)`, `\s-(?:delete|exec|execdir|ok|okdir|fprint|fprint0|fprintf|fls)\b`),
		patternExcept(`^(?:eslint|prettier\s+--check|shellcheck|hadolint|tsc)(?:\s|$)`, lintFix),
		pattern(`^(?:node|python3?|ruby|go|cargo|rustc|java|npm|yarn|pnpm|git|docker|kubectl|make|gh)\s+(?:--version|-V|version)$`),
	}
}
