package httpapi

import (
	"net/http"

	"sales-trainer/internal/audit"
	"sales-trainer/internal/catalog"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListScenarios(c *gin.Context) {
	list, err := h.Catalog.ListScenarios(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []catalog.Scenario{}
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": list})
}

func (h Handlers) GetScenario(c *gin.Context) {
	s, err := h.Catalog.GetScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) CreateScenario(c *gin.Context) {
	var in catalog.ScenarioInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Catalog.CreateScenario(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventScenarioWritten, "", s.ID, "created", gin.H{"title": s.Title})
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) UpdateScenario(c *gin.Context) {
	var in catalog.ScenarioInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Catalog.UpdateScenario(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventScenarioWritten, "", s.ID, "updated", gin.H{"title": s.Title})
	c.JSON(http.StatusOK, s)
}

func (h Handlers) DeleteScenario(c *gin.Context) {
	id := c.Param("id")
	if err := h.Catalog.DeleteScenario(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventScenarioWritten, "", id, "deleted", nil)
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListSellers(c *gin.Context) {
	list, err := h.Catalog.ListSellers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []catalog.Seller{}
	}
	c.JSON(http.StatusOK, gin.H{"sellers": list})
}

func (h Handlers) GetSeller(c *gin.Context) {
	s, err := h.Catalog.GetSeller(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) CreateSeller(c *gin.Context) {
	var in catalog.SellerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Catalog.CreateSeller(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventSellerWritten, "", s.ID, "created", gin.H{"name": s.Name})
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) UpdateSeller(c *gin.Context) {
	var in catalog.SellerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Catalog.UpdateSeller(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventSellerWritten, "", s.ID, "updated", gin.H{"name": s.Name})
	c.JSON(http.StatusOK, s)
}

func (h Handlers) DeleteSeller(c *gin.Context) {
	id := c.Param("id")
	if err := h.Catalog.DeleteSeller(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.recordAudit(c, audit.EventSellerWritten, "", id, "deleted", nil)
	c.Status(http.StatusNoContent)
}
