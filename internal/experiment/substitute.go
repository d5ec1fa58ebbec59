package experiment

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/vecnet/vecnet.openmalaria/internal/primes"
)

var placeholderPattern = regexp.MustCompile(`^@.*@$`)

// ValidPlaceholder reports whether token starts and ends with '@'.
func ValidPlaceholder(token string) bool {
	return placeholderPattern.MatchString(token)
}

// Apply substitutes the arms of an assignment into template, strictly in
// assignment order. Every occurrence of a placeholder is replaced
// literally. Placeholders are validated when their arm is applied, so a
// malformed arm that is never selected never fails.
//
// Within one arm placeholders are applied in sorted token order. Arms
// whose values contain their own or each other's tokens are unsupported.
func (e *Experiment) Apply(template string, assignment Assignment) (string, error) {
	doc := template
	for _, p := range assignment {
		var err error
		doc, err = e.applyArm(doc, p.Sweep, p.Arm)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

func (e *Experiment) applyArm(doc, sweepName, armName string) (string, error) {
	sweep, ok := e.sweeps[sweepName]
	if !ok {
		return "", lookupErrorf("sweep %q not found", sweepName)
	}
	arm, ok := sweep[armName]
	if !ok {
		return "", lookupErrorf("arm %q not found in sweep %q", armName, sweepName)
	}

	for _, token := range arm.Tokens() {
		if !ValidPlaceholder(token) {
			return "", formatErrorf(
				"arm %q of sweep %q: substitution string %q should start and end with an @, for example @param1@",
				armName, sweepName, token)
		}
		text, err := e.render(arm[token])
		if err != nil {
			return "", err
		}
		doc = strings.ReplaceAll(doc, token, text)
	}
	return doc, nil
}

// render returns the replacement text of v, reading file references.
func (e *Experiment) render(v Value) (string, error) {
	if !v.IsFileRef() {
		return v.String(), nil
	}
	data, err := os.ReadFile(e.resolvePath(v.FilePath()))
	if err != nil {
		return "", fmt.Errorf("experiment: read %s: %w", v.String(), err)
	}
	return string(data), nil
}

// substituteSeed replaces @seed@ with the next prime from seeds.
func substituteSeed(doc string, seeds *primes.Sequence) (string, int, error) {
	if !strings.Contains(doc, SeedPlaceholder) {
		return "", 0, &Error{Kind: ErrSeedPlaceholder}
	}
	seed := seeds.Next()
	return strings.ReplaceAll(doc, SeedPlaceholder, strconv.Itoa(seed)), seed, nil
}
