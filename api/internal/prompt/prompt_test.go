package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Embedded(t *testing.T) {
	b := New("")
	out, err := b.Build("rubric", map[string]any{
		"nivel":      "2° Medio",
		"asignatura": "Matemática",
		"oa":         "OA 3",
		"actividad":  "Resolver ecuaciones cuadráticas",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "2° Medio")
	assert.Contains(t, out, "Resolver ecuaciones cuadráticas")
	assert.Contains(t, out, `"tabla"`)
}

func TestBuild_Join(t *testing.T) {
	out, err := New("").Build("assessment", map[string]any{
		"nivel": "5° Básico", "asignatura": "Ciencias", "oas": []string{"OA 1", "OA 2"},
		"cantidad": 10, "dok": "DOK1 30%",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "OA 1; OA 2")
}

func TestBuild_MissingParam(t *testing.T) {
	_, err := New("").Build("nee", map[string]any{"diagnostico": "TEA"})
	assert.Error(t, err)
}

func TestBuild_UnknownOrInvalidName(t *testing.T) {
	b := New("")
	_, err := b.Build("poema", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = b.Build("../etc/passwd", nil)
	assert.Error(t, err)
}

func TestBuild_DirOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nee.tmpl"), []byte("custom {{.barrera}}"), 0o644))

	b := New(dir)
	out, err := b.Build("nee", map[string]any{"barrera": "lectura"})
	require.NoError(t, err)
	assert.Equal(t, "custom lectura", out)

	// Templates missing from dir fall back to the embedded set.
	out, err = b.Build("elevation", map[string]any{"nivel": "n", "asignatura": "a", "oa": "o", "actividad": "x"})
	require.NoError(t, err)
	assert.Contains(t, out, "DOK")
}

func TestNames_CoverEveryKind(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"assessment", "audit", "elevation", "lesson", "nee", "reading_questions", "rubric", "unit_strategy",
	}, New("").Names())
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	b := New(dir)

	path, err := b.Save("nee", "nuevo {{.barrera}}")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nee.tmpl"), path)

	out, err := b.Build("nee", map[string]any{"barrera": "ruido"})
	require.NoError(t, err)
	assert.Equal(t, "nuevo ruido", out)

	_, err = b.Save("nee", "{{.barrera")
	assert.Error(t, err)
	_, err = b.Save("poema", "x")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	_, err = b.Save("../nee", "x")
	assert.Error(t, err)
	_, err = b.Save("nee", "   ")
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	_, err = New("").Save("nee", "x")
	assert.ErrorIs(t, err, ErrReadOnly)
}
