package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/dto"
	"github.com/jsamuelsen/gallery-quiz/internal/app"
)

// QuizHandler exposes the quiz wizard over HTTP.
type QuizHandler struct {
	service *app.QuizService
}

// NewQuizHandler creates a new quiz handler.
func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{
		service: service,
	}
}

// sessionID binds and validates the :id path parameter.
// On failure the error response has already been written.
func sessionID(c *gin.Context) (string, bool) {
	var uri dto.SessionURI
	if err := dto.BindURIAndValidate(c, &uri); err != nil {
		dto.HandleError(c, err)
		return "", false
	}

	return uri.ID, true
}

// GetCatalog handles GET /api/v1/quiz/catalog
// Returns the seven steps and every option list the quiz offers.
func (h *QuizHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Catalog())
}

// StartSession handles POST /api/v1/quiz/sessions
// Creates a session with default answers at step 1.
//
// @Success 201 {object} app.SessionView
// @Failure 503 {object} dto.ErrorResponse
func (h *QuizHandler) StartSession(c *gin.Context) {
	view, err := h.service.StartSession(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Location", c.FullPath()+"/"+view.ID)
	c.JSON(http.StatusCreated, view)
}

// OpenSession handles PUT /api/v1/quiz/sessions/:id
// Resumes the session from its snapshot, or starts it fresh under that ID.
func (h *QuizHandler) OpenSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.service.OpenSession(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSession handles GET /api/v1/quiz/sessions/:id
//
// @Success 200 {object} app.SessionView
// @Failure 404 {object} dto.ErrorResponse
func (h *QuizHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.service.State(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// PatchAnswers handles PATCH /api/v1/quiz/sessions/:id/answers
// Merges the supplied fields into the session's answers.
//
// @Success 200 {object} app.SessionView
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
func (h *QuizHandler) PatchAnswers(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req dto.PatchAnswersRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	view, err := h.service.UpdateAnswers(c.Request.Context(), id, req.ToPatch())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ToggleAnswer handles POST /api/v1/quiz/sessions/:id/answers/toggle
// Adds or removes one option of a multi-select answer.
func (h *QuizHandler) ToggleAnswer(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req dto.ToggleRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	res, err := h.service.ToggleAnswer(c.Request.Context(), id, req.Field, req.Value)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Advance handles POST /api/v1/quiz/sessions/:id/advance
// A refused request is not an error: the response carries accepted=false.
func (h *QuizHandler) Advance(c *gin.Context) {
	h.transition(c, h.service.Advance)
}

// Retreat handles POST /api/v1/quiz/sessions/:id/retreat
func (h *QuizHandler) Retreat(c *gin.Context) {
	h.transition(c, h.service.Retreat)
}

func (h *QuizHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, id string) (app.TransitionResult, error),
) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	res, err := op(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetResults handles GET /api/v1/quiz/sessions/:id/results
// Returns recommendations, profile and quote link once the wizard finished.
//
// @Success 200 {object} app.Results
// @Failure 409 {object} dto.ErrorResponse
func (h *QuizHandler) GetResults(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	res, err := h.service.Results(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Restart handles POST /api/v1/quiz/sessions/:id/restart
// Clears every answer and returns to step 1.
func (h *QuizHandler) Restart(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.service.Restart(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RegisterQuizRoutes registers quiz routes on the given router group.
func (h *QuizHandler) RegisterQuizRoutes(rg *gin.RouterGroup) {
	quiz := rg.Group("/quiz")
	quiz.GET("/catalog", h.GetCatalog)
	quiz.POST("/sessions", h.StartSession)

	session := quiz.Group("/sessions/:id")
	session.PUT("", h.OpenSession)
	session.GET("", h.GetSession)
	session.PATCH("/answers", h.PatchAnswers)
	session.POST("/answers/toggle", h.ToggleAnswer)
	session.POST("/advance", h.Advance)
	session.POST("/retreat", h.Retreat)
	session.GET("/results", h.GetResults)
	session.POST("/restart", h.Restart)
}
