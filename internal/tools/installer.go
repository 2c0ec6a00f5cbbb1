package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/contriboss/rv/internal/cache"
	"github.com/contriboss/rv/internal/checksum"
	"github.com/contriboss/rv/internal/config"
	"github.com/contriboss/rv/internal/extensions"
	"github.com/contriboss/rv/internal/gempack"
	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/logger"
	"github.com/contriboss/rv/internal/platform"
	"github.com/contriboss/rv/internal/registry"
	"github.com/contriboss/rv/internal/resolver"
	"github.com/contriboss/rv/internal/ruby"
)

// NoMatchingVersionError means a gem exists but no release fits the host.
type NoMatchingVersionError struct {
	Gem string
}

func (e *NoMatchingVersionError) Error() string {
	return fmt.Sprintf("no release of %s is installable on this machine", e.Gem)
}

// Installer drives `tool install`: index fetch, resolution, download with
// streamed checksums, staged extraction, and trampoline placement.
type Installer struct {
	Config       *config.Config
	Client       *gemserver.Client
	Registry     *registry.Client
	RemoteRubies []ruby.Version
	Workers      int
	Engine       string
	Extensions   *extensions.BuildConfig
}

// InstallReport summarizes one install run.
type InstallReport struct {
	Root        string
	RootVersion string
	Ruby        string
	Installed   int
	Skipped     int
	Executables []string
}

type selectedGem struct {
	name    string
	vp      resolver.VersionPlatform
	release gemserver.Release
}

// Install installs gemName and its runtime dependency closure as sibling
// tool directories, then places the root gem's executables on the bin dir.
func (inst *Installer) Install(ctx context.Context, gemName string, force bool) (*InstallReport, error) {
	host := platform.Host()
	engine := inst.Engine
	if engine == "" {
		engine = ruby.EngineMRI
	}
	source := &fallbackSource{primary: inst.Client, registry: inst.Registry}

	rootReleases, err := source.GetVersions(ctx, gemName)
	if err != nil {
		return nil, err
	}
	rootVP, err := pickRootRelease(gemName, rootReleases, host, engine)
	if err != nil {
		return nil, err
	}
	logger.Info("resolving", "gem", gemName, "version", rootVP.String())

	info, err := fetchTransitive(ctx, source, gemName, rootReleases, inst.Workers)
	if err != nil {
		return nil, err
	}

	solution, err := resolver.Solve(gemName, rootVP, info, host)
	if err != nil {
		return nil, err
	}

	selected, err := collectSelected(solution, info)
	if err != nil {
		return nil, err
	}

	archives, err := inst.downloadAll(ctx, selected)
	if err != nil {
		return nil, err
	}

	chosenRuby, err := chooseRuby(inst.Config.Rubies(), inst.RemoteRubies, rubyRequirements(selected))
	if err != nil {
		return nil, err
	}

	report := &InstallReport{Root: gemName, RootVersion: rootVP.Version.String(), Ruby: chosenRuby.String()}

	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.NumCPU()))
	specs := make(map[string]*gempack.Specification)
	for _, sel := range selected {
		sel := sel
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			spec, installed, err := inst.installOne(sel, archives[sel.name], solution, chosenRuby, force)
			if err != nil {
				return err
			}
			mu.Lock()
			specs[sel.name] = spec
			if installed {
				report.Installed++
			} else {
				report.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inst.buildAllExtensions(ctx, selected, engine)

	rootSpec := specs[gemName]
	if rootSpec != nil {
		executables, err := inst.placeTrampolines(gemName, solution[gemName], rootSpec, chosenRuby)
		if err != nil {
			return nil, err
		}
		report.Executables = executables
	}
	return report, nil
}

// pickRootRelease chooses the newest non-prerelease release that fits the
// host platform and engine; prereleases are a last resort.
func pickRootRelease(gem string, releases []gemserver.Release, host platform.Platform, engine string) (resolver.VersionPlatform, error) {
	best := -1
	bestPre := -1
	for i, release := range releases {
		if !release.Platform.Matches(host) || !resolver.EngineCompatible(engine, release.Platform) {
			continue
		}
		vp := resolver.VersionPlatform{Version: release.Version, Platform: release.Platform}
		if release.Version.IsPrerelease() {
			if bestPre < 0 || candidateVP(releases[bestPre]).Compare(vp, host) < 0 {
				bestPre = i
			}
			continue
		}
		if best < 0 || candidateVP(releases[best]).Compare(vp, host) < 0 {
			best = i
		}
	}
	if best < 0 {
		best = bestPre
	}
	if best < 0 {
		return resolver.VersionPlatform{}, &NoMatchingVersionError{Gem: gem}
	}
	return candidateVP(releases[best]), nil
}

func candidateVP(release gemserver.Release) resolver.VersionPlatform {
	return resolver.VersionPlatform{Version: release.Version, Platform: release.Platform}
}

// collectSelected joins the solver output back with the index releases.
func collectSelected(solution map[string]resolver.VersionPlatform, info map[string][]gemserver.Release) ([]selectedGem, error) {
	names := resolver.SelectedNames(solution)
	out := make([]selectedGem, 0, len(names))
	for _, name := range names {
		vp := solution[name]
		found := false
		for _, release := range info[name] {
			if release.Version.Equal(vp.Version) && release.Platform.Equal(vp.Platform) {
				out = append(out, selectedGem{name: name, vp: vp, release: release})
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("solver selected %s %s which is not in the index", name, vp)
		}
	}
	return out, nil
}

func rubyRequirements(selected []selectedGem) gemver.ConstraintList {
	var all gemver.ConstraintList
	for _, sel := range selected {
		all = all.Intersect(sel.release.Metadata.RubyConstraints)
	}
	return all
}

// downloadAll fetches every selected archive concurrently, streaming each
// through the checksum reader into the cache.
func (inst *Installer) downloadAll(ctx context.Context, selected []selectedGem) (map[string]string, error) {
	archives := make(map[string]string, len(selected))
	var mu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	workers := inst.Workers
	if workers <= 0 {
		workers = defaultFanOut
	}
	g.SetLimit(workers)

	for _, sel := range selected {
		sel := sel
		g.Go(func() error {
			path, err := inst.downloadOne(groupCtx, sel)
			if err != nil {
				return err
			}
			mu.Lock()
			archives[sel.name] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return archives, nil
}

func (inst *Installer) downloadOne(ctx context.Context, sel selectedGem) (string, error) {
	fullName := sel.release.FullName(sel.name)
	expected := fmt.Sprintf("%x", sel.release.Metadata.Checksum)

	if len(sel.release.Metadata.Checksum) > 0 {
		if path, ok := inst.Config.Cache.Get(cache.BucketArchives, expected); ok {
			return path, nil
		}
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(inst.Client.DownloadGem(ctx, fullName, pw))
		}()
		cr := checksum.NewReader(pr)
		path, err := inst.Config.Cache.Put(cache.BucketArchives, expected, cr)
		if err != nil {
			return "", err
		}
		// A bad digest is fatal and never retried.
		if err := cr.Verify(fullName+".gem", checksum.SHA256, expected); err != nil {
			_ = inst.Config.Cache.Remove(cache.BucketArchives, expected)
			return "", err
		}
		logger.Info("fetched", "gem", fullName)
		return path, nil
	}

	// No advertised checksum (JSON API fallback): download first, then key
	// the cache entry by the computed digest.
	tmp, err := os.CreateTemp("", "rv-*.gem")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(inst.Client.DownloadGem(ctx, fullName, pw))
	}()
	cr := checksum.NewReader(pr)
	if _, err := io.Copy(tmp, cr); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to download %s: %w", fullName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	file, err := os.Open(tmp.Name())
	if err != nil {
		return "", err
	}
	defer file.Close()
	return inst.Config.Cache.Put(cache.BucketArchives, cr.Sums().HexSHA256(), file)
}

// installOne extracts one archive into a staging directory and commits it
// to tools/<gem>@<version> with a rename. Nothing partial ever appears
// under the final name.
func (inst *Installer) installOne(sel selectedGem, archivePath string, solution map[string]resolver.VersionPlatform, chosenRuby ruby.Version, force bool) (*gempack.Specification, bool, error) {
	destDir := filepath.Join(inst.Config.ToolsDir(), sel.name+"@"+sel.vp.Version.String())

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	pkg, err := gempack.Open(file)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", archivePath, err)
	}
	spec, err := pkg.Spec()
	if err != nil {
		return nil, false, err
	}

	if _, statErr := os.Stat(destDir); statErr == nil && !force {
		return spec, false, nil
	}

	if pkg.HasChecksums() {
		if err := pkg.Verify(nil); err != nil {
			return nil, false, err
		}
	}

	staging := destDir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, false, err
	}
	if err := extractPayload(pkg, staging); err != nil {
		_ = os.RemoveAll(staging)
		return nil, false, err
	}

	manifest := &Manifest{
		Name:        sel.name,
		Version:     sel.vp.Version.String(),
		Executables: spec.Executables,
		Ruby:        chosenRuby.String(),
	}
	if !sel.vp.Platform.IsRuby() {
		manifest.Platform = sel.vp.Platform.String()
	}
	for _, dep := range sel.release.Deps {
		if vp, ok := solution[dep.Name]; ok {
			manifest.Dependencies = append(manifest.Dependencies, ManifestDep{
				Name:    dep.Name,
				Version: vp.Version.String(),
			})
		}
	}
	if err := WriteManifest(staging, manifest); err != nil {
		_ = os.RemoveAll(staging)
		return nil, false, err
	}

	if _, statErr := os.Stat(destDir); statErr == nil {
		// force reinstall: drop the old tree only after the stage succeeded
		if err := os.RemoveAll(destDir); err != nil {
			_ = os.RemoveAll(staging)
			return nil, false, err
		}
	}
	if err := os.Rename(staging, destDir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, false, err
	}
	return spec, true, nil
}

// extractPayload streams the gem payload into root. Entry paths arrive
// sanitized from gempack; the join is still verified to stay inside root.
func extractPayload(pkg *gempack.Package, root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	data, err := pkg.Data()
	if err != nil {
		return err
	}

	buf := make([]byte, 64*1024)
	for {
		entry, r, err := data.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(entry.Path))
		if rel, err := filepath.Rel(root, target); err != nil || !filepath.IsLocal(rel) {
			return &gempack.UnsafeEntryError{Path: entry.Path}
		}
		switch {
		case entry.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case entry.Kind == gempack.EntrySymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
			if err := os.Symlink(entry.LinkTarget, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			mode := os.FileMode(entry.Mode & 0o777)
			if mode == 0 {
				mode = 0o644
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return err
			}
			if _, err := io.CopyBuffer(f, r, buf); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

func (inst *Installer) buildAllExtensions(ctx context.Context, selected []selectedGem, engine string) {
	builder := extensions.NewBuilder(inst.Extensions)
	for _, sel := range selected {
		dir := filepath.Join(inst.Config.ToolsDir(), sel.name+"@"+sel.vp.Version.String())
		result, err := builder.Build(ctx, dir, sel.name, engine)
		if err != nil {
			logger.Warn("failed to build extensions", "gem", sel.name, "error", err)
			continue
		}
		if result.Success && !result.Skipped {
			logger.Info("built extensions", "gem", sel.name, "count", len(result.Extensions))
		}
	}
}

// placeTrampolines writes shell trampolines for the root gem's executables
// into the user's bin directory. Each trampoline runs the chosen Ruby with
// GEM_HOME and GEM_PATH pinned to the tool tree.
func (inst *Installer) placeTrampolines(gemName string, vp resolver.VersionPlatform, spec *gempack.Specification, chosenRuby ruby.Version) ([]string, error) {
	if len(spec.Executables) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(inst.Config.BinDir, 0o755); err != nil {
		return nil, err
	}

	toolDir := filepath.Join(inst.Config.ToolsDir(), gemName+"@"+vp.Version.String())
	rubyExe := "ruby"
	if install, ok := inst.Config.MatchingRuby(rubyRequestFor(chosenRuby)); ok {
		rubyExe = filepath.Join(install.BinDir(), "ruby")
	}

	var placed []string
	for _, exe := range spec.Executables {
		script := fmt.Sprintf(`#!/bin/sh
export GEM_HOME=%q
export GEM_PATH=%q
exec %q %q "$@"
`, toolDir, toolDir, rubyExe, filepath.Join(toolDir, "bin", exe))

		target := filepath.Join(inst.Config.BinDir, exe)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			return nil, fmt.Errorf("failed to write trampoline %s: %w", target, err)
		}
		placed = append(placed, exe)
	}
	sort.Strings(placed)
	return placed, nil
}

func rubyRequestFor(v ruby.Version) ruby.Request {
	major, minor, patch := v.Major, v.Minor, v.Patch
	return ruby.Request{
		Engine:     v.Engine,
		Major:      &major,
		Minor:      &minor,
		Patch:      &patch,
		Tiny:       v.Tiny,
		Prerelease: v.Prerelease,
	}
}
