package handle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
	"profeic/api/internal/generate"
	"profeic/api/internal/llm"
	"profeic/api/internal/prompt"
	"profeic/api/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

type genCall struct {
	kind, llmName string
	params        map[string]any
	policy        generate.Policy
}

type fakeGen struct {
	calls []genCall
	rec   decode.Record
	err   error
}

func (f *fakeGen) Generate(_ context.Context, kind, llmName string, params map[string]any, policy generate.Policy) (decode.Record, error) {
	f.calls = append(f.calls, genCall{kind, llmName, params, policy})
	return f.rec, f.err
}

func (f *fakeGen) Decode(kind, text string) (decode.Record, error) {
	d, ok := schemas.Lookup(kind)
	if !ok {
		return nil, generate.ErrUnknownKind
	}
	return decode.Decode(text, d)
}

type fakeLib struct {
	saved   []store.Resource
	renamed map[string]string
	items   map[string]store.Resource
}

func newFakeLib() *fakeLib {
	return &fakeLib{renamed: map[string]string{}, items: map[string]store.Resource{}}
}

func (f *fakeLib) Save(_ context.Context, res store.Resource) (string, error) {
	f.saved = append(f.saved, res)
	return "11111111-1111-1111-1111-111111111111", nil
}

func (f *fakeLib) List(_ context.Context, userID, kind string, limit int) ([]store.Resource, error) {
	var out []store.Resource
	for _, r := range f.items {
		if r.UserID == userID && (kind == "" || r.Kind == kind) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLib) Get(_ context.Context, userID, id string) (store.Resource, error) {
	r, ok := f.items[id]
	if !ok || r.UserID != userID {
		return store.Resource{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeLib) Rename(_ context.Context, userID, id, title string) error {
	if _, err := f.Get(context.Background(), userID, id); err != nil {
		return err
	}
	f.renamed[id] = title
	return nil
}

func (f *fakeLib) UpdateContent(_ context.Context, userID, id string, _ map[string]any) error {
	_, err := f.Get(context.Background(), userID, id)
	return err
}

func (f *fakeLib) Delete(_ context.Context, userID, id string) error {
	if _, err := f.Get(context.Background(), userID, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

func do(t *testing.T, r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error
}

func TestHealth(t *testing.T) {
	r := New(&fakeGen{}, Options{}).Router(RouterConfig{})
	w := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	r = New(&fakeGen{}, Options{DB: fakeDB{err: errors.New("down")}}).Router(RouterConfig{})
	w = do(t, r, http.MethodGet, "/healthz", "", "X-Request-ID", "req-7")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "req-7", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "db_unavailable", errorBody(t, w).Code)
}

func TestGenerateEndpoints_Policies(t *testing.T) {
	cases := []struct {
		path   string
		body   string
		kind   string
		policy generate.Policy
	}{
		{"/v1/rubric", `{"nivel":"2° Medio","asignatura":"Matemática","oa":"OA 3","actividad":"Ecuaciones"}`, "rubric", generate.Fallback},
		{"/v1/assessment", `{"nivel":"5° Básico","asignatura":"Ciencias","oas":["OA 1"],"cantidad":5}`, "assessment", generate.RetryOnce},
		{"/v1/unit", `{"asignatura":"Historia","nivel":"7° Básico","clases":4,"oas":["OA 2"]}`, "unit_strategy", generate.RetryOnce},
		{"/v1/lesson", `{"numero_clase":2,"total_clases":4,"titulo_unidad":"U","foco":"F"}`, "lesson", generate.RetryOnce},
		{"/v1/elevate", `{"actividad":"Resumir el texto"}`, "elevation", generate.Fallback},
		{"/v1/nee", `{"diagnostico":"TEA","barrera":"ruido","actividad":"debate"}`, "nee", generate.Fallback},
		{"/v1/audit", `{"texto":"1. ¿Cuál es la capital de Chile? a) Lima b) Santiago"}`, "audit", generate.RetryOnce},
		{"/v1/reading/questions", `{"nivel":"4° Básico","cantidad":3,"texto":"Había una vez un zorro que vivía en el bosque."}`, "reading_questions", generate.RetryOnce},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			gen := &fakeGen{rec: decode.Record{"ok": true}}
			r := New(gen, Options{}).Router(RouterConfig{})
			w := do(t, r, http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Len(t, gen.calls, 1)
			assert.Equal(t, tc.kind, gen.calls[0].kind)
			assert.Equal(t, tc.policy, gen.calls[0].policy)
			assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		})
	}
}

func TestAssessment_Params(t *testing.T) {
	gen := &fakeGen{rec: decode.Record{}}
	r := New(gen, Options{}).Router(RouterConfig{})
	w := do(t, r, http.MethodPost, "/v1/assessment",
		`{"llm_name":"gpt","nivel":"5° Básico","asignatura":"Ciencias","oas":["OA 1","OA 2"],"cantidad":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	want := map[string]any{
		"nivel": "5° Básico", "asignatura": "Ciencias", "oas": []string{"OA 1", "OA 2"},
		"cantidad": 5, "dok": "DOK 1: 30%, DOK 2: 50%, DOK 3: 20%",
	}
	if diff := cmp.Diff(want, gen.calls[0].params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "gpt", gen.calls[0].llmName)
}

func TestGenerateEndpoints_BadRequest(t *testing.T) {
	gen := &fakeGen{}
	r := New(gen, Options{}).Router(RouterConfig{})

	for _, tc := range []struct{ path, body string }{
		{"/v1/rubric", `{"nivel":"x"}`},
		{"/v1/rubric", `not json`},
		{"/v1/assessment", `{"nivel":"n","asignatura":"a","oas":[],"cantidad":5}`},
		{"/v1/assessment", `{"nivel":"n","asignatura":"a","oas":["OA"],"cantidad":500}`},
		{"/v1/lesson", `{"numero_clase":5,"total_clases":4,"titulo_unidad":"U","foco":"F"}`},
		{"/v1/nee", `{"llm_name":"claude","diagnostico":"a","barrera":"b","actividad":"c"}`},
		{"/v1/audit", `{"texto":"corto"}`},
	} {
		w := do(t, r, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path+" "+tc.body)
		assert.Equal(t, "bad_request", errorBody(t, w).Code)
	}
	assert.Empty(t, gen.calls)
}

func TestGenerateEndpoints_ErrorMapping(t *testing.T) {
	body := `{"texto":"1. ¿Cuál es la capital de Chile? a) Lima b) Santiago"}`
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing field", &decode.Failure{Kind: decode.MissingRequiredField, Field: "items_analizados", Keys: []string{"diagnostico_global"}}, http.StatusBadGateway, "missing_required_field"},
		{"malformed", &decode.Failure{Kind: decode.MalformedOutput, Text: "sorry"}, http.StatusBadGateway, "malformed_output"},
		{"transient", llm.NewError("gemini", 503, errors.New("overloaded")), http.StatusServiceUnavailable, "llm_unavailable"},
		{"permanent", llm.NewError("openai", 401, errors.New("bad key")), http.StatusBadGateway, "llm_error"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&fakeGen{err: tc.err}, Options{}).Router(RouterConfig{})
			w := do(t, r, http.MethodPost, "/v1/audit", body)
			assert.Equal(t, tc.status, w.Code)
			e := errorBody(t, w)
			assert.Equal(t, tc.code, e.Code)
			if tc.name == "missing field" {
				assert.Equal(t, "items_analizados", e.Field)
				assert.Equal(t, []string{"diagnostico_global"}, e.Keys)
			}
		})
	}
}

func TestDecodeEndpoint(t *testing.T) {
	r := New(&fakeGen{}, Options{}).Router(RouterConfig{})

	w := do(t, r, http.MethodPost, "/v1/decode/nee",
		"Claro:\n```json\n{\"principios_dua\": \"Representación\", \"strategies\": {\"access\": \"Audio\"}}\n```")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"dua_principles":"Representación","estrategias":{"acceso":"Audio","actividad":"","evaluacion":""}}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/v1/decode/nee", `{"estrategias": {"acceso": "x"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := errorBody(t, w)
	assert.Equal(t, "missing_required_field", e.Code)
	assert.Equal(t, "dua_principles", e.Field)
	assert.Equal(t, []string{"estrategias"}, e.Keys)

	w = do(t, r, http.MethodPost, "/v1/decode/poema", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	r := New(&fakeGen{}, Options{Institution: "Colegio Madre Paulina"}).Router(RouterConfig{})
	body := `{"content":{"title":"Prueba de Fracciones","items":[{"question":"¿Cuánto es $$\\frac{1}{2}$$ + 1/2?"}]},
		"meta":{"subject":"Matemática","grade":"5° Básico"}}`

	w := do(t, r, http.MethodPost, "/v1/export/assessment?format=docx", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="assessment_prueba_de_fracciones.docx"`, w.Header().Get("Content-Disposition"))
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "word/document.xml")

	w = do(t, r, http.MethodPost, "/v1/export/assessment?format=pdf", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = do(t, r, http.MethodPost, "/v1/export/assessment?format=odt", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/export/assessment", `{"content":{"items":[]}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "title", errorBody(t, w).Field)

	w = do(t, r, http.MethodPost, "/v1/export/poema", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLibrary(t *testing.T) {
	lib := newFakeLib()
	lib.items["a1"] = store.Resource{ID: "a1", UserID: "u1", Kind: "rubric", Title: "R1"}
	lib.items["a2"] = store.Resource{ID: "a2", UserID: "u2", Kind: "rubric", Title: "R2"}
	r := New(&fakeGen{}, Options{Library: lib}).Router(RouterConfig{})
	user := []string{"X-User-ID", "u1"}

	w := do(t, r, http.MethodGet, "/v1/library", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/v1/library", `{"kind":"rubric","title":"Mi rúbrica","content":{"titulo":"x"}}`, user...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, lib.saved, 1)
	assert.Equal(t, "u1", lib.saved[0].UserID)

	w = do(t, r, http.MethodPost, "/v1/library", `{"kind":"poema","title":"x","content":{}}`, user...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/v1/library?kind=rubric", "", user...)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "R1", list[0].Title)

	w = do(t, r, http.MethodGet, "/v1/library?limit=x", "", user...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/v1/library/a2", "", user...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorBody(t, w).Code)

	w = do(t, r, http.MethodPatch, "/v1/library/a1", `{"title":"Nueva"}`, user...)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Nueva", lib.renamed["a1"])

	w = do(t, r, http.MethodPatch, "/v1/library/a1", `{}`, user...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/v1/library/a1", "", user...)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/v1/library/a1", "", user...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLibrary_Disabled(t *testing.T) {
	r := New(&fakeGen{}, Options{}).Router(RouterConfig{})
	w := do(t, r, http.MethodGet, "/v1/library", "", "X-User-ID", "u1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "library_disabled", errorBody(t, w).Code)
}

func TestCORS(t *testing.T) {
	r := New(&fakeGen{}, Options{}).Router(RouterConfig{CORSOrigins: []string{"https://profeic.cl"}})
	req := httptest.NewRequest(http.MethodOptions, "/v1/rubric", nil)
	req.Header.Set("Origin", "https://profeic.cl")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://profeic.cl", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "rubric_rubrica_de_ecuaciones_cuadraticas", fileStem("rubric", decode.Record{"titulo": "Rúbrica de Ecuaciones Cuadráticas"}))
	assert.Equal(t, "nee", fileStem("nee", decode.Record{}))
}

func TestPrompts(t *testing.T) {
	dir := t.TempDir()
	r := New(&fakeGen{}, Options{Prompts: prompt.New(dir)}).Router(RouterConfig{})

	w := do(t, r, http.MethodGet, "/v1/prompts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rubric"`)

	w = do(t, r, http.MethodPut, "/v1/prompts/nee", `{"text":"Adecúa {{.actividad}}"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp UpdatePromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "nee", resp.Name)

	w = do(t, r, http.MethodPut, "/v1/prompts/poema", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodPut, "/v1/prompts/nee", `{"text":"{{.actividad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = New(&fakeGen{}, Options{Prompts: prompt.New("")}).Router(RouterConfig{})
	w = do(t, r, http.MethodPut, "/v1/prompts/nee", `{"text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "prompts_read_only", errorBody(t, w).Code)
}
