package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"pedidos-backend/internal/middleware"
	"pedidos-backend/internal/models"
	"pedidos-backend/internal/service"
)

type PedidosHandler struct {
	service *service.Service
}

func NewPedidosHandler(svc *service.Service) *PedidosHandler {
	return &PedidosHandler{service: svc}
}

// Create handles POST /pedidos: multipart form with description, quantity,
// time and 1..5 files in the images field.
func (h *PedidosHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	quantity, timeEstimate, ok := formNumbers(c)
	if !ok {
		return
	}

	pedido, err := h.service.Create(c.Request.Context(), userID,
		c.PostForm("description"), quantity, timeEstimate, middleware.FilePaths(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(pedido))
}

// List handles GET /pedidos. Public, newest first.
func (h *PedidosHandler) List(c *gin.Context) {
	pedidos, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponses(pedidos))
}

// ListByUser handles GET /pedidos/user for the authenticated caller.
func (h *PedidosHandler) ListByUser(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	pedidos, err := h.service.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponses(pedidos))
}

// Get handles GET /pedidos/:id. Public.
func (h *PedidosHandler) Get(c *gin.Context) {
	pedido, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(pedido))
}

// Update handles PUT /pedidos/:id: multipart form, images optional. With
// files the whole image set is replaced; without it stays untouched.
func (h *PedidosHandler) Update(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	quantity, timeEstimate, ok := formNumbers(c)
	if !ok {
		return
	}

	pedido, err := h.service.Update(c.Request.Context(), userID, c.Param("id"),
		c.PostForm("description"), quantity, timeEstimate, middleware.FilePaths(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(pedido))
}

// Delete handles DELETE /pedidos/:id.
func (h *PedidosHandler) Delete(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{
		Message: "pedido and its images deleted",
	})
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	str, ok := value.(string)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// formNumbers parses the quantity and time form fields as positive integers
// and writes the validation error response itself on failure.
func formNumbers(c *gin.Context) (int, int, bool) {
	quantity, err := strconv.Atoi(c.PostForm("quantity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "quantity must be a number",
			Code:  "validation_failed",
		})
		return 0, 0, false
	}

	timeEstimate, err := strconv.Atoi(c.PostForm("time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "time must be a number",
			Code:  "validation_failed",
		})
		return 0, 0, false
	}

	return quantity, timeEstimate, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "persistence_failure"

	switch {
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, service.ErrInvalidID):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrImageStore):
		status, code = http.StatusBadGateway, "image_store_failure"
	}

	c.JSON(status, models.ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func toResponse(pedido *models.Pedido) models.PedidoResponse {
	images := pedido.Images
	if images == nil {
		images = []models.Image{}
	}
	return models.PedidoResponse{
		ID:          pedido.ID.String(),
		Description: pedido.Description,
		Quantity:    pedido.Quantity,
		Time:        pedido.Time,
		Images:      images,
		UserID:      pedido.UserID.String(),
		CreatedAt:   pedido.CreatedAt,
		UpdatedAt:   pedido.UpdatedAt,
	}
}

func toResponses(pedidos []models.Pedido) []models.PedidoResponse {
	responses := make([]models.PedidoResponse, len(pedidos))
	for i := range pedidos {
		responses[i] = toResponse(&pedidos[i])
	}
	return responses
}
