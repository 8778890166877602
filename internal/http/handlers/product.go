package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/domain/fault"
	"github.com/VictorGoic0/SpendSense/internal/http/response"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
	"github.com/VictorGoic0/SpendSense/internal/services"
)

type ProductHandler struct {
	log      *logger.Logger
	products services.ProductService
}

func NewProductHandler(baseLog *logger.Logger, products services.ProductService) *ProductHandler {
	return &ProductHandler{
		log:      baseLog.With("handler", "ProductHandler"),
		products: products,
	}
}

// GET /api/products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	activeOnly, err := boolQuery(c, "active_only", true)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("active_only"))
		return
	}
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("limit"))
		return
	}
	offset, err := intQuery(c, "skip", 0)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("skip"))
		return
	}

	rows, total, err := h.products.List(c.Request.Context(), services.ProductListFilter{
		Category:    strings.TrimSpace(c.Query("category")),
		PersonaType: strings.TrimSpace(c.Query("persona_type")),
		ActiveOnly:  activeOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{"products": rows, "total": total, "skip": offset, "limit": limit})
}

// GET /api/products/:product_id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	out, err := h.products.Get(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var row types.ProductOffer
	if err := c.ShouldBindJSON(&row); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.products.Create(c.Request.Context(), &row)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// PUT /api/products/:product_id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var row types.ProductOffer
	if err := c.ShouldBindJSON(&row); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), err)
		return
	}

	out, err := h.products.Update(c.Request.Context(), c.Param("product_id"), &row)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, out)
}

// DELETE /api/products/:product_id
//
// Soft delete: the row stays for audit but drops out of matching.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.products.Deactivate(c.Request.Context(), c.Param("product_id")); err != nil {
		response.RespondFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/products/match/:user_id
func (h *ProductHandler) MatchProducts(c *gin.Context) {
	windowDays, err := intQuery(c, "window_days", 30)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(fault.CodeValidation), errInvalidQuery("window_days"))
		return
	}

	matches, err := h.products.Match(c.Request.Context(), c.Param("user_id"), windowDays)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"user_id":     c.Param("user_id"),
		"window_days": windowDays,
		"matches":     matches,
		"count":       len(matches),
	})
}
