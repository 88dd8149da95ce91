package schemas

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profeic/api/internal/decode"
)

func TestBuiltin_Kinds(t *testing.T) {
	assert.Equal(t, []string{
		"assessment", "audit", "elevation", "lesson", "nee", "reading_questions", "rubric", "unit_strategy",
	}, Kinds())

	for _, k := range Kinds() {
		d, ok := Lookup(k)
		require.True(t, ok, k)
		assert.Equal(t, k, d.Name())
		assert.NotEmpty(t, d.Required(), k)
	}
	_, ok := Lookup("poem")
	assert.False(t, ok)
}

func TestBuiltin_Fallbacks(t *testing.T) {
	r := Builtin()
	for _, k := range []string{"rubric", "assessment", "unit_strategy", "elevation", "nee"} {
		rec, ok := r.Fallback(k)
		require.True(t, ok, k)
		assert.NotEmpty(t, rec, k)
	}
	_, ok := r.Fallback("lesson")
	assert.False(t, ok)

	// Each call returns an independent record.
	a, _ := r.Fallback("elevation")
	a.Object("propuestas")["actividad"] = "changed"
	b, _ := r.Fallback("elevation")
	assert.Equal(t, "Intente nuevamente.", b.Object("propuestas").Text("actividad"))
}

func TestAssessment_Drift(t *testing.T) {
	d, _ := Lookup("assessment")
	raw := "```json\n" + `{
		"student_version": {
			"title": "Fracciones",
			"items": [
				{"id": 1, "itemType": "multiple_choice", "dok_level": "2", "points": 2, "question": "1/2 + 1/4?", "options": [{"text":"3/4"},{"text":"2/6"}]},
				{"id": 2, "type": "essay", "stem": "Explica \sqrt{4}", "options": null}
			]
		},
		"teacher_guide": {"answers": [{"related_item_id": 1, "correct_answer": "3/4", "explanation": "suma"}]}
	}` + "\n```"
	rec, err := decode.Decode(raw, d)
	require.NoError(t, err)

	assert.Equal(t, "Fracciones", rec.Text("title"))
	assert.Equal(t, "Instrucciones generales", rec.Text("description"))
	items := rec.Objects("items")
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].Text("id"))
	assert.Equal(t, "multiple_choice", items[0].Text("type"))
	assert.Equal(t, 2, items[0].Int("dok_level"))
	assert.Equal(t, []string{"3/4", "2/6"}, items[0].Strings("options"))
	assert.Equal(t, `Explica \sqrt{4}`, items[1].Text("stem"))
	assert.Equal(t, []string{}, items[1].Strings("options"))
	assert.Equal(t, 1, items[1].Int("points"))

	answers := rec.Objects("answers")
	require.Len(t, answers, 1)
	assert.Equal(t, "1", answers[0].Text("related_item_id"))
}

func TestRubric_LevelKeys(t *testing.T) {
	d, _ := Lookup("rubric")
	rec, err := decode.Decode(`{"title":"R","criteria":[{"name":"Argumenta","porcentaje":"40%","niveles":{"Insuficiente":"a","Elemental":"b","Adecuado":"c"}}]}`, d)
	require.NoError(t, err)

	assert.Equal(t, "R", rec.Text("titulo"))
	assert.Equal(t, "", rec.Text("descripcion"))
	tabla := rec.Objects("tabla")
	require.Len(t, tabla, 1)
	assert.Equal(t, "Argumenta", tabla[0].Text("criterio"))
	assert.Equal(t, 40, tabla[0].Int("porcentaje"))
	assert.Equal(t, map[string]string{
		"insuficiente": "a", "elemental": "b", "adecuado": "c", "destacado": "",
	}, tabla[0].Map("niveles"))
}

func TestUnitStrategy_Aliases(t *testing.T) {
	d, _ := Lookup("unit_strategy")
	rec, err := decode.Decode(`{"titulo_unidad":"U","clases":[{"numero":1,"foco":"f","contenido_editable":{"inicio":"i"}}]}`, d)
	require.NoError(t, err)

	assert.Equal(t, "U", rec.Text("titulo_unidad_creativo"))
	clases := rec.Objects("planificacion_clases")
	require.Len(t, clases, 1)
	assert.Equal(t, 1, clases[0].Int("numero_clase"))
	assert.Equal(t, "i", clases[0].Object("contenido_editable").Text("inicio"))
	assert.Equal(t, "", clases[0].Object("contenido_editable").Text("cierre"))
}

func TestElevation_MissingProposal(t *testing.T) {
	d, _ := Lookup("elevation")
	_, err := decode.Decode(`{"dok_actual":2,"diagnostico":"d","propuestas":{"pregunta":"p"}}`, d)
	var f *decode.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, decode.MissingRequiredField, f.Kind)
	assert.Equal(t, "propuestas.actividad", f.Field)
	assert.Equal(t, []string{"pregunta"}, f.Keys)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "kind: x\nfields:\n  - name: a\n    shape: string\n    colour: red\n"},
		{"missing kind", "fields:\n  - name: a\n    shape: string\n"},
		{"bad shape", "kind: x\nfields:\n  - name: a\n    shape: tuple\n"},
		{"fallback missing required", "kind: x\nfields:\n  - name: a\n    shape: string\n    required: true\nfallback:\n  b: c\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fstest.MapFS{"x.yaml": {Data: []byte(tt.body)}})
			assert.Error(t, err)
		})
	}

	_, err := Load(fstest.MapFS{})
	assert.Error(t, err)

	dup := "kind: x\nfields:\n  - name: a\n    shape: string\n"
	_, err = Load(fstest.MapFS{"a.yaml": {Data: []byte(dup)}, "b.yaml": {Data: []byte(dup)}})
	assert.Error(t, err)
}
