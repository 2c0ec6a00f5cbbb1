package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/extensions"
	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/registry"
	"github.com/contriboss/rv/internal/tools"
)

// RunTool dispatches `rv tool {install, list, uninstall}`.
func RunTool(args []string) error {
	if len(args) < 1 {
		return usageErrorf("usage: rv tool {install|list|uninstall} [arguments]")
	}

	switch args[0] {
	case "install":
		return toolInstall(args[1:])
	case "list":
		return toolList(args[1:])
	case "uninstall":
		return toolUninstall(args[1:])
	default:
		return usageErrorf("unknown tool subcommand %q", args[0])
	}
}

func toolInstall(args []string) error {
	fs := flag.NewFlagSet("tool install", flag.ContinueOnError)
	gemServer := fs.String("gem-server", "", "gem server to install from")
	force := fs.Bool("force", false, "reinstall when the tool is already installed")
	fs.BoolVar(force, "f", *force, "reinstall when the tool is already installed (shorthand)")
	skipExt := fs.Bool("skip-extensions", false, "do not build native extensions")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	if fs.NArg() != 1 {
		return usageErrorf("usage: rv tool install <gem>")
	}
	gemName := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()
	if *gemServer == "" {
		*gemServer = cfg.GemServer
	}

	client, err := gemserver.NewClient(*gemServer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	installer := &tools.Installer{
		Config:   cfg,
		Client:   client,
		Registry: registry.NewClient(""),
		Extensions: &extensions.BuildConfig{
			SkipExtensions: *skipExt,
			Parallel:       4,
		},
	}

	report, err := installer.Install(ctx, gemName, *force)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s %s (%d installed, %d already present)\n",
		successStyle.Render("Installed"),
		nameStyle.Render(report.Root), report.RootVersion,
		report.Installed, report.Skipped)
	for _, exe := range report.Executables {
		fmt.Printf("  %s %s\n", dimStyle.Render("bin:"), exe)
	}
	fmt.Printf("  %s %s\n", dimStyle.Render("ruby:"), report.Ruby)
	return nil
}

func toolList(args []string) error {
	fs := flag.NewFlagSet("tool list", flag.ContinueOnError)
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	installed, err := tools.List(cfg)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		if installed == nil {
			installed = []tools.InstalledTool{}
		}
		data, err := json.Marshal(installed)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "text":
		if len(installed) == 0 {
			fmt.Println("No tools installed")
			return nil
		}
		for _, tool := range installed {
			fmt.Printf("%s %s\n", nameStyle.Render(tool.Name), tool.Version)
		}
	default:
		return usageErrorf("unknown format %q", *format)
	}
	return nil
}

func toolUninstall(args []string) error {
	if len(args) != 1 {
		return usageErrorf("usage: rv tool uninstall <gem>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer cfg.Cache.Close()

	removed, err := tools.Uninstall(cfg, args[0])
	if err != nil {
		return err
	}
	if removed == 0 {
		fmt.Printf("%s is not installed\n", args[0])
		return nil
	}
	fmt.Printf("%s %s (%d version(s))\n", successStyle.Render("Removed"), args[0], removed)
	return nil
}
