package commands

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

const updateRepo = "contriboss/rv"

// RunSelfUpdate implements `rv selfupdate`.
func RunSelfUpdate(args []string, currentVersion string) error {
	fs := flag.NewFlagSet("selfupdate", flag.ContinueOnError)
	checkOnly := fs.Bool("check", false, "check for updates without installing")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.BoolVar(yes, "y", *yes, "skip the confirmation prompt (shorthand)")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}

	versionStr := strings.TrimPrefix(currentVersion, "v")
	if versionStr == "" || versionStr == "dev" {
		return fmt.Errorf("cannot self-update a dev build; install from GitHub releases")
	}
	current, err := semver.Parse(versionStr)
	if err != nil {
		return fmt.Errorf("invalid current version %q: %w", currentVersion, err)
	}

	fmt.Print("Checking latest released version... ")
	latest, found, err := selfupdate.DetectLatest(updateRepo)
	if err != nil {
		fmt.Println()
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		fmt.Println()
		return fmt.Errorf("no releases found for %s", updateRepo)
	}
	fmt.Printf("v%s\n", latest.Version)

	if !latest.Version.GT(current) {
		fmt.Println("rv is already up to date")
		return nil
	}
	fmt.Printf("New release found! v%s -> v%s\n", current, latest.Version)
	if *checkOnly {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate the running executable: %w", err)
	}

	if !*yes {
		fmt.Print("Download and replace the current binary? [Y/n] ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Println("Update cancelled.")
			return nil
		}
	}

	fmt.Println("Downloading...")
	if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Printf("%s rv to v%s\n", successStyle.Render("Updated"), latest.Version)
	return nil
}
