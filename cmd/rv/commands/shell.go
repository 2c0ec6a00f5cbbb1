package commands

import (
	"fmt"
	"path/filepath"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/ruby"
)

// RunShell dispatches `rv shell {init, env}`.
func RunShell(args []string) error {
	if len(args) < 1 {
		return usageErrorf("usage: rv shell {init|env}")
	}
	switch args[0] {
	case "init":
		return shellInit(args[1:])
	case "env":
		return shellEnv()
	default:
		return usageErrorf("unknown shell subcommand %q", args[0])
	}
}

// shellInit prints the integration snippet for a shell. The snippet defers
// to `rv shell env` at prompt time so directory changes take effect.
func shellInit(args []string) error {
	if len(args) != 1 {
		return usageErrorf("usage: rv shell init {zsh|bash|fish|nu}")
	}
	switch args[0] {
	case "zsh", "bash":
		fmt.Print(`_rv_hook() {
  eval "$(rv shell env)"
}
if [ -n "$ZSH_VERSION" ]; then
  typeset -ag precmd_functions
  precmd_functions+=(_rv_hook)
else
  PROMPT_COMMAND="_rv_hook${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
fi
`)
	case "fish":
		fmt.Print(`function _rv_hook --on-variable PWD
  rv shell env | source
end
_rv_hook
`)
	case "nu":
		fmt.Print(`$env.config = ($env.config | upsert hooks.env_change.PWD [{ ||
  rv shell env | from toml | load-env
}])
`)
	default:
		return usageErrorf("unsupported shell %q", args[0])
	}
	return nil
}

// shellEnv prints export statements for the Ruby the current directory
// requests. Without a request nothing is printed.
func shellEnv() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	request, _, err := ruby.RequestedRuby(".")
	if err != nil || request == nil {
		return nil
	}
	install, ok := cfg.MatchingRuby(*request)
	if !ok {
		return nil
	}

	gemHome := filepath.Join(install.Root, "lib", "gems")
	unset, set := config.EnvFor(install, gemHome, gemHome, environMap())
	for _, name := range unset {
		fmt.Printf("unset %s\n", name)
	}
	for _, v := range set {
		fmt.Printf("export %s=%q\n", v.Name, v.Value)
	}
	return nil
}
