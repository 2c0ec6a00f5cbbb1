package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/ruby"
	"github.com/contriboss/rv/internal/scriptmeta"
)

// RunScript implements `rv run <script.rb> [args…]`: pick a Ruby from the
// script's metadata block or the project's version files, rebuild the
// environment, and exec the interpreter.
func RunScript(args []string) error {
	if len(args) < 1 {
		return usageErrorf("usage: rv run <script.rb> [arguments]")
	}
	scriptPath := args[0]
	scriptArgs := args[1:]

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", scriptPath, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	// The script's own requirement wins over project version files.
	var request *ruby.Request
	if meta := scriptmeta.Parse(string(content)); meta != nil && meta.RequiresRuby != nil {
		request = meta.RequiresRuby
	} else if found, source, err := ruby.RequestedRuby(filepath.Dir(scriptPath)); err == nil && found != nil {
		logger.Debug("using project ruby", "source", source)
		request = found
	}

	var install config.RubyInstall
	if request != nil {
		found, ok := cfg.MatchingRuby(*request)
		if !ok {
			return fmt.Errorf("no installed Ruby satisfies %s; run `rv ruby install %s`", request, request)
		}
		install = found
	} else {
		installs := cfg.Rubies()
		if len(installs) == 0 {
			return fmt.Errorf("no Ruby interpreters installed")
		}
		install = installs[len(installs)-1]
	}

	gemHome := filepath.Join(install.Root, "lib", "gems")
	unset, set := config.EnvFor(install, gemHome, gemHome, environMap())

	env := os.Environ()
	env = pruneEnv(env, unset)
	for _, v := range set {
		env = append(env, v.Name+"="+v.Value)
	}

	rubyExe := filepath.Join(install.BinDir(), "ruby")
	cmd := exec.Command(rubyExe, append([]string{scriptPath}, scriptArgs...)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	return cmd.Run()
}

func environMap() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

func pruneEnv(env []string, unset []string) []string {
	drop := map[string]bool{}
	for _, name := range unset {
		drop[name] = true
	}
	var out []string
	for _, kv := range env {
		name := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				name = kv[:i]
				break
			}
		}
		if drop[name] || name == "PATH" {
			continue
		}
		out = append(out, kv)
	}
	return out
}
