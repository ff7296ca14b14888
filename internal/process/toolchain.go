package process

import (
	"fmt"
	"strings"
)

// Toolchain wraps a spawned shell command with a version-manager
// invocation. Only cmd-style spawns (not args-style) can be wrapped,
// since the template
// operates on a single shell command string. UseDoubleQuotes records
// which quote style the template wraps {cmd} in, so WrapCommand can
// escape the embedded command for that style before substituting.
type Toolchain struct {
	Name            string
	Template        string // contains "{cmd}"
	UseDoubleQuotes bool
}

var toolchains = []Toolchain{
	{Name: "mise", Template: `mise exec -- sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "asdf", Template: `asdf exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "nvm", Template: `bash -c 'source "$NVM_DIR/nvm.sh" && {cmd}'`, UseDoubleQuotes: false},
	{Name: "rbenv", Template: `rbenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "pyenv", Template: `pyenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "nodenv", Template: `nodenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "jenv", Template: `jenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "tfenv", Template: `tfenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "goenv", Template: `goenv exec sh -c "{cmd}"`, UseDoubleQuotes: true},
	{Name: "rustup", Template: `rustup run stable sh -c "{cmd}"`, UseDoubleQuotes: true},
}

// LookupToolchain returns the toolchain named by name, or false if it is
// not one of the supported wrappers.
func LookupToolchain(name string) (Toolchain, bool) {
	for _, t := range toolchains {
		if t.Name == name {
			return t, true
		}
	}
	return Toolchain{}, false
}

// SupportedToolchains lists every recognized toolchain name, for error
// messages.
func SupportedToolchains() []string {
	names := make([]string, len(toolchains))
	for i, t := range toolchains {
		names[i] = t.Name
	}
	return names
}

// WrapCommand substitutes cmd into the toolchain's template, escaping
// the quote character the template's {cmd} slot is wrapped in so cmd
// can't break out of that quoting.
func (t Toolchain) WrapCommand(cmd string) string {
	var escaped string
	if t.UseDoubleQuotes {
		escaped = strings.ReplaceAll(cmd, `"`, `\"`)
	} else {
		escaped = strings.ReplaceAll(cmd, `'`, `'\''`)
	}
	return strings.ReplaceAll(t.Template, "{cmd}", escaped)
}

// ValidateToolchain returns an error naming the supported set if name is
// non-empty and unrecognized.
func ValidateToolchain(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := LookupToolchain(name); !ok {
		return fmt.Errorf("unknown toolchain %q, supported: %s", name, strings.Join(SupportedToolchains(), ", "))
	}
	return nil
}
