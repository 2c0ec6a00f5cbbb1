package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contriboss/pubgrub-go"
	"github.com/contriboss/rv/internal/gemserver"
	"github.com/contriboss/rv/internal/gemver"
	"github.com/contriboss/rv/internal/platform"
)

// rootName is pubgrub-go's synthetic root package.
const rootName = "$$root"

// ConflictError wraps a PubGrub failure with the derivation it produced.
type ConflictError struct {
	Root       string
	Derivation error
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "could not resolve dependencies for %s:\n", e.Root)
	for _, line := range strings.Split(e.Derivation.Error(), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *ConflictError) Unwrap() error { return e.Derivation }

// Solve selects one (version, platform) for the root gem pinned to rootVP
// and for every transitively required gem, from the prefetched index.
// Resolution is deterministic: the index is registered up front and the
// tie-break ordering is total.
func Solve(rootGem string, rootVP VersionPlatform, info map[string][]gemserver.Release, host platform.Platform) (map[string]VersionPlatform, error) {
	source := newIndexSource(info, host, rootGem, rootVP)

	root := pubgrub.NewRootSource()
	pin := gemver.ConstraintList{{Op: gemver.OpEqual, Version: rootVP.Version}}
	root.AddPackage(pubgrub.MakeName(rootGem), conditionFor(pin, host))

	solver := pubgrub.NewSolver(root, source)
	solution, err := solver.Solve(root.Term())
	if err != nil {
		return nil, &ConflictError{Root: rootGem, Derivation: err}
	}

	selected := make(map[string]VersionPlatform, len(solution))
	for _, pkg := range solution {
		if pkg.Name.Value() == rootName {
			continue
		}
		vp, ok := pkg.Version.(*vpVersion)
		if !ok {
			return nil, fmt.Errorf("solver returned foreign version %q for %s", pkg.Version, pkg.Name.Value())
		}
		selected[pkg.Name.Value()] = vp.vp
	}
	return selected, nil
}

// SelectedNames returns the solved gem names in stable order.
func SelectedNames(selected map[string]VersionPlatform) []string {
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
