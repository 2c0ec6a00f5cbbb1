package commands

import (
	"fmt"
	"os"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/ruby"
)

// RunRuby dispatches `rv ruby {list, pin, find, dir}`.
func RunRuby(args []string) error {
	if len(args) < 1 {
		return usageErrorf("usage: rv ruby {list|pin|find|dir} [arguments]")
	}

	switch args[0] {
	case "list":
		return rubyList()
	case "pin":
		return rubyPin(args[1:])
	case "find":
		return rubyFind(args[1:])
	case "dir":
		return rubyDir()
	default:
		return usageErrorf("unknown ruby subcommand %q", args[0])
	}
}

func rubyList() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	installs := cfg.Rubies()
	if len(installs) == 0 {
		fmt.Println("No Ruby interpreters installed")
		return nil
	}

	var active *ruby.Request
	if req, _, err := ruby.RequestedRuby("."); err == nil {
		active = req
	}

	for _, install := range installs {
		marker := " "
		if active != nil && install.Version.Satisfies(*active) {
			marker = successStyle.Render("*")
		}
		fmt.Printf("%s %s %s\n", marker, nameStyle.Render(install.Version.String()), dimStyle.Render(install.Root))
	}
	return nil
}

func rubyPin(args []string) error {
	if len(args) != 1 {
		return usageErrorf("usage: rv ruby pin <version>")
	}
	request, err := ruby.ParseRequest(args[0])
	if err != nil {
		return usageErrorf("invalid ruby version %q: %v", args[0], err)
	}

	pin := request.String()
	if request.Engine == "ruby" && request.Prerelease == "" {
		// Bare numbers pin in the conventional dotted form.
		pin = pin[len("ruby-"):]
	}
	if err := os.WriteFile(".ruby-version", []byte(pin+"\n"), 0o644); err != nil {
		return err
	}
	fmt.Printf("Pinned to %s\n", nameStyle.Render(pin))
	return nil
}

func rubyFind(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	var request *ruby.Request
	if len(args) > 0 {
		parsed, err := ruby.ParseRequest(args[0])
		if err != nil {
			return usageErrorf("invalid ruby request %q: %v", args[0], err)
		}
		request = &parsed
	} else if found, _, err := ruby.RequestedRuby("."); err == nil && found != nil {
		request = found
	}

	if request == nil {
		return fmt.Errorf("no Ruby requested here; pass a version or create .ruby-version")
	}
	install, ok := cfg.MatchingRuby(*request)
	if !ok {
		return fmt.Errorf("no installed Ruby satisfies %s", request)
	}
	fmt.Println(install.Root)
	return nil
}

func rubyDir() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()
	fmt.Println(cfg.RubiesDir())
	return nil
}
