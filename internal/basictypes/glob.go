package basictypes

import (
	"encoding/json"
	"sync"

	"github.com/gobwas/glob"
)

// Glob is a compiled glob pattern. "*" matches any run of characters other than "/", "**" matches
// any run of characters, "?" matches a single character.
//
// A Glob is compiled lazily on first use; patterns that fail to compile never match.
type Glob struct {
	pattern string
	state   *globState
}

type globState struct {
	once     sync.Once
	compiled glob.Glob
}

// NewGlob creates a Glob for the given pattern.
func NewGlob(pattern string) Glob {
	return Glob{pattern: pattern, state: &globState{}}
}

// CompileGlob compiles a pattern eagerly, returning an error if it is invalid.
func CompileGlob(pattern string) (Glob, error) {
	compiled, err := glob.Compile(pattern, '/')
	if err != nil {
		return Glob{}, err
	}
	g := NewGlob(pattern)
	g.state.once.Do(func() { g.state.compiled = compiled })
	return g, nil
}

// Pattern returns the original pattern.
func (g Glob) Pattern() string { return g.pattern }

func (g Glob) String() string { return g.pattern }

// IsMatch returns true if the value matches the pattern.
func (g Glob) IsMatch(value string) bool {
	if g.state == nil {
		return false
	}
	g.state.once.Do(func() {
		g.state.compiled, _ = glob.Compile(g.pattern, '/')
	})
	return g.state.compiled != nil && g.state.compiled.Match(value)
}

// MarshalJSON writes the pattern as a JSON string.
func (g Glob) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.pattern)
}

// UnmarshalJSON reads the pattern from a JSON string.
func (g *Glob) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*g = NewGlob(s)
	return nil
}

// GlobPatterns is a list of globs that matches a value if any of its patterns does.
type GlobPatterns []Glob

// IsMatch returns true if any pattern matches the value.
func (p GlobPatterns) IsMatch(value string) bool {
	for _, g := range p {
		if g.IsMatch(value) {
			return true
		}
	}
	return false
}

// IsGlobMatch is a convenience function for matching a value against a single pattern. If
// doubleStar is false, "**" is treated the same as "*", so a "*" in the pattern can match "/".
func IsGlobMatch(value, pattern string, doubleStar bool) bool {
	var g glob.Glob
	var err error
	if doubleStar {
		g, err = glob.Compile(pattern, '/')
	} else {
		g, err = glob.Compile(pattern)
	}
	return err == nil && g.Match(value)
}
