package process

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProcessName_Valid(t *testing.T) {
	require.NoError(t, ValidateProcessName("web"))
	require.NoError(t, ValidateProcessName("api-server_2"))
}

func TestValidateProcessName_Empty(t *testing.T) {
	assert.Error(t, ValidateProcessName(""))
}

func TestValidateProcessName_DotOrDotDot(t *testing.T) {
	assert.Error(t, ValidateProcessName("."))
	assert.Error(t, ValidateProcessName(".."))
}

func TestValidateProcessName_PathSeparator(t *testing.T) {
	assert.Error(t, ValidateProcessName("a/b"))
}

func TestValidateProcessName_InvalidChars(t *testing.T) {
	for _, ch := range []string{":", "*", "?", "\"", "<", ">", "|"} {
		assert.Error(t, ValidateProcessName("name"+ch), "char %q should be rejected", ch)
	}
}

func TestValidateProcessName_LeadingTrailingWhitespace(t *testing.T) {
	assert.Error(t, ValidateProcessName(" name"))
	assert.Error(t, ValidateProcessName("name "))
}

func TestValidateProcessName_TooLong(t *testing.T) {
	assert.Error(t, ValidateProcessName(strings.Repeat("a", maxProcessNameLen+1)))
}

func TestValidateProjectName_WindowsReserved(t *testing.T) {
	assert.Error(t, ValidateProjectName("CON"))
	assert.Error(t, ValidateProjectName("com1"))
	assert.NoError(t, ValidateProjectName("console"))
}

func TestValidateToolchain(t *testing.T) {
	assert.NoError(t, ValidateToolchain(""))
	assert.NoError(t, ValidateToolchain("mise"))
	assert.Error(t, ValidateToolchain("not-a-toolchain"))
}
