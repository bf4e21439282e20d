//go:build property

package errors

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propertyCodes = []string{
	ErrCodeMissingVariable,
	ErrCodeMissingLayout,
	ErrCodeCompositionCycle,
	ErrCodeScriptCycle,
	ErrCodeWriteFailed,
	ErrCodeBuildFailed,
}

func buildChain(path string, picks []int) error {
	var err error = fmt.Errorf("root cause")
	err = Wrap(err, ErrorTypeResolution, propertyCodes[picks[0]], "inner").WithFile(path)
	for _, pick := range picks[1:] {
		err = Wrap(err, ErrorTypeComposition, propertyCodes[pick], "outer")
	}
	return err
}

// TestWrapChainProperties validates what a chain of wraps preserves.
func TestWrapChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	pickGen := gen.SliceOfN(5, gen.IntRange(0, len(propertyCodes)-1))

	properties.Property("every code in the chain is found", prop.ForAll(
		func(picks []int) bool {
			err := buildChain("page/index/index.htm", picks)
			for _, pick := range picks {
				if !HasCode(err, propertyCodes[pick]) {
					return false
				}
			}
			return true
		},
		pickGen,
	))

	properties.Property("the innermost location survives wrapping", prop.ForAll(
		func(name string, picks []int) bool {
			path := "page/" + name + ".htm"
			ae, ok := buildChain(path, picks).(*ArborError)
			return ok && ae.FilePath == path
		},
		gen.AlphaString(),
		pickGen,
	))

	properties.Property("the root cause is the original error", prop.ForAll(
		func(picks []int) bool {
			return GetRootCause(buildChain("x.htm", picks)).Error() == "root cause"
		},
		pickGen,
	))

	properties.TestingRun(t)
}
