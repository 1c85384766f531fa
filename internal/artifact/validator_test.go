package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestValidate_AllPatternsSatisfied(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "print('a')")
	writeFile(t, root, "docs/readme.md", "# readme")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"src/*.py", "docs/*.md"})

	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, []string{"docs/readme.md", "src/a.py"}, result.Found)
	assert.Empty(t, result.Missing)
	assert.True(t, result.Satisfied())
}

func TestValidate_EmptyFileDoesNotSatisfy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "print('a')")
	writeFile(t, root, "src/b.py", "")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"src/*.py"})

	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status, "a.py satisfies the pattern")
	assert.Equal(t, []string{"src/a.py"}, result.Found, "zero-byte b.py must not count as found")
}

func TestValidate_OnlyEmptyMatchesFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/b.py", "")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"src/*.py"})

	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, []string{"src/*.py"}, result.Missing)
	assert.False(t, result.Satisfied())
}

func TestValidate_Partial(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "x")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"src/*.py", "docs/*.md"})

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, []string{"docs/*.md"}, result.Missing)
	assert.True(t, result.Satisfied(), "PARTIAL does not downgrade phase success to failure by itself")
}

func TestValidate_RecursiveWildcard(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/deep/nested/impl.go", "package nested")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"pkg/**/*.go"})

	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, []string{"pkg/deep/nested/impl.go"}, result.Found)
}

func TestValidate_NoPatterns(t *testing.T) {
	v := NewValidator(t.TempDir(), nil)
	result, err := v.Validate(nil)

	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)
}

func TestValidate_InvalidPattern(t *testing.T) {
	v := NewValidator(t.TempDir(), nil)
	_, err := v.Validate([]string{"src/[invalid"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact pattern")
}

func TestWriteReport(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "x")

	v := NewValidator(root, nil)
	result, err := v.Validate([]string{"src/*.py", "docs/*.md"})
	require.NoError(t, err)

	reportDir := filepath.Join(root, "reports")
	require.NoError(t, WriteReport(reportDir, "build", result))
	require.NotEmpty(t, result.ReportPath)

	content, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Phase:   build")
	assert.Contains(t, string(content), "Status:  PARTIAL")
	assert.Contains(t, string(content), "[MISSING] docs/*.md")
	assert.Contains(t, string(content), "src/a.py")
}

func TestWriteBundle(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteBundle(dir, &Manifest{
		Phase:     "build",
		RunID:     "run-1",
		Artifacts: []string{"src/a.py"},
		Metrics:   map[string]string{"validation_status": "PASS"},
	})

	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"run_id": "run-1"`)
	assert.Contains(t, string(content), `"src/a.py"`)
}

func TestWriteBundle_RequiresPhase(t *testing.T) {
	_, err := WriteBundle(t.TempDir(), &Manifest{})
	require.Error(t, err)
}
