package process

import "strings"

// Key identifies a supervised process by its (project, name) scope.
type Key struct {
	Project string
	Name    string
}

// String returns the canonical "project/name" form.
func (k Key) String() string {
	return k.Project + "/" + k.Name
}

// SanitizedName replaces path separators inside Name so it is safe to use
// as a file name component ('/' becomes '_').
func (k Key) SanitizedName() string {
	return SanitizeName(k.Name)
}

// SanitizeName replaces '/' with '_' in a process name for filesystem use.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}
