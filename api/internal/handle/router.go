package handle

import (
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	CORSOrigins []string
	// Release switches gin to release mode.
	Release bool
}

func (h *Handle) Router(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(h.log))
	r.Use(CORS(cfg.CORSOrigins))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/rubric", h.Rubric)
		v1.POST("/assessment", h.Assessment)
		v1.POST("/unit", h.Unit)
		v1.POST("/lesson", h.Lesson)
		v1.POST("/elevate", h.Elevate)
		v1.POST("/nee", h.NEE)
		v1.POST("/audit", h.Audit)
		v1.POST("/reading/questions", h.ReadingQuestions)

		v1.POST("/decode/:kind", h.Decode)
		v1.POST("/export/:kind", h.Export)

		v1.GET("/prompts", h.ListPrompts)
		v1.PUT("/prompts/:name", h.UpdatePrompt)

		lib := v1.Group("/library")
		lib.Use(h.requireLibrary, requireUser)
		lib.POST("", h.SaveResource)
		lib.GET("", h.ListResources)
		lib.GET("/:id", h.GetResource)
		lib.PATCH("/:id", h.PatchResource)
		lib.DELETE("/:id", h.DeleteResource)
	}
	return r
}
