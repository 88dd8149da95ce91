package handle

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"profeic/api/internal/generate"
)

// LLMChoice is embedded by every generation request.
type LLMChoice struct {
	LLMName string `json:"llm_name" binding:"omitempty,oneof=gemini gpt openai"`
}

type RubricRequest struct {
	LLMChoice
	Nivel      string `json:"nivel" binding:"required"`
	Asignatura string `json:"asignatura" binding:"required"`
	OA         string `json:"oa" binding:"required"`
	Actividad  string `json:"actividad" binding:"required"`
}

func (r RubricRequest) params() map[string]any {
	return map[string]any{"nivel": r.Nivel, "asignatura": r.Asignatura, "oa": r.OA, "actividad": r.Actividad}
}

type AssessmentRequest struct {
	LLMChoice
	Nivel      string   `json:"nivel" binding:"required"`
	Asignatura string   `json:"asignatura" binding:"required"`
	OAs        []string `json:"oas" binding:"required,min=1,dive,required"`
	Cantidad   int      `json:"cantidad" binding:"required,min=1,max=40"`
	DOK        string   `json:"dok"`
}

func (r AssessmentRequest) params() map[string]any {
	dok := r.DOK
	if strings.TrimSpace(dok) == "" {
		dok = "DOK 1: 30%, DOK 2: 50%, DOK 3: 20%"
	}
	return map[string]any{"nivel": r.Nivel, "asignatura": r.Asignatura, "oas": r.OAs, "cantidad": r.Cantidad, "dok": dok}
}

type UnitRequest struct {
	LLMChoice
	Asignatura string   `json:"asignatura" binding:"required"`
	Nivel      string   `json:"nivel" binding:"required"`
	Clases     int      `json:"clases" binding:"required,min=1,max=30"`
	OAs        []string `json:"oas" binding:"required,min=1,dive,required"`
	Contexto   string   `json:"contexto"`
}

func (r UnitRequest) params() map[string]any {
	return map[string]any{"asignatura": r.Asignatura, "nivel": r.Nivel, "clases": r.Clases, "oas": r.OAs, "contexto": r.Contexto}
}

type LessonRequest struct {
	LLMChoice
	NumeroClase  int    `json:"numero_clase" binding:"required,min=1"`
	TotalClases  int    `json:"total_clases" binding:"required,min=1,gtefield=NumeroClase"`
	TituloUnidad string `json:"titulo_unidad" binding:"required"`
	Foco         string `json:"foco" binding:"required"`
}

func (r LessonRequest) params() map[string]any {
	return map[string]any{"numero_clase": r.NumeroClase, "total_clases": r.TotalClases, "titulo_unidad": r.TituloUnidad, "foco": r.Foco}
}

type ElevateRequest struct {
	LLMChoice
	Nivel      string `json:"nivel"`
	Asignatura string `json:"asignatura"`
	OA         string `json:"oa"`
	Actividad  string `json:"actividad" binding:"required"`
}

func (r ElevateRequest) params() map[string]any {
	return map[string]any{"nivel": r.Nivel, "asignatura": r.Asignatura, "oa": r.OA, "actividad": r.Actividad}
}

type NEERequest struct {
	LLMChoice
	Diagnostico string `json:"diagnostico" binding:"required"`
	Barrera     string `json:"barrera" binding:"required"`
	Actividad   string `json:"actividad" binding:"required"`
}

func (r NEERequest) params() map[string]any {
	return map[string]any{"diagnostico": r.Diagnostico, "barrera": r.Barrera, "actividad": r.Actividad}
}

type AuditRequest struct {
	LLMChoice
	Asignatura string `json:"asignatura"`
	Nivel      string `json:"nivel"`
	Texto      string `json:"texto" binding:"required,min=20"`
}

func (r AuditRequest) params() map[string]any {
	return map[string]any{"asignatura": r.Asignatura, "nivel": r.Nivel, "texto": r.Texto}
}

type ReadingQuestionsRequest struct {
	LLMChoice
	Nivel    string `json:"nivel" binding:"required"`
	Cantidad int    `json:"cantidad" binding:"required,min=1,max=30"`
	Texto    string `json:"texto" binding:"required,min=20"`
}

func (r ReadingQuestionsRequest) params() map[string]any {
	return map[string]any{"nivel": r.Nivel, "cantidad": r.Cantidad, "texto": r.Texto}
}

type paramsRequest interface {
	params() map[string]any
	llmName() string
}

func (l LLMChoice) llmName() string { return l.LLMName }

// generateFrom binds req, then runs kind under policy.
func generateFrom[T paramsRequest](h *Handle, c *gin.Context, kind string, policy generate.Policy) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	rec, err := h.gen.Generate(ctx, kind, req.llmName(), req.params(), policy)
	if err != nil {
		respondFailure(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handle) Rubric(c *gin.Context) {
	generateFrom[RubricRequest](h, c, "rubric", generate.Fallback)
}

func (h *Handle) Assessment(c *gin.Context) {
	generateFrom[AssessmentRequest](h, c, "assessment", generate.RetryOnce)
}

func (h *Handle) Unit(c *gin.Context) {
	generateFrom[UnitRequest](h, c, "unit_strategy", generate.RetryOnce)
}

func (h *Handle) Lesson(c *gin.Context) {
	generateFrom[LessonRequest](h, c, "lesson", generate.RetryOnce)
}

func (h *Handle) Elevate(c *gin.Context) {
	generateFrom[ElevateRequest](h, c, "elevation", generate.Fallback)
}

func (h *Handle) NEE(c *gin.Context) {
	generateFrom[NEERequest](h, c, "nee", generate.Fallback)
}

func (h *Handle) Audit(c *gin.Context) {
	generateFrom[AuditRequest](h, c, "audit", generate.RetryOnce)
}

func (h *Handle) ReadingQuestions(c *gin.Context) {
	generateFrom[ReadingQuestionsRequest](h, c, "reading_questions", generate.RetryOnce)
}
