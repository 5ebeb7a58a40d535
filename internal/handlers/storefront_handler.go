package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
)

const consultantNotFound = "Consultora no encontrada"

type tiendaPage struct {
	Brand      string
	Consultant catalog.Consultant
	Products   []catalog.Product
}

type storeLink struct {
	ConsultantID string `json:"consultora_id"`
	URL          string `json:"url"`
}

// RegisterStorefrontRoutes registers the browse endpoints.
func RegisterStorefrontRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/", func(c *gin.Context) {
		id := strings.TrimSpace(c.Query("consultora_id"))
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_consultant_id", "detail": "Falta ID de consultora"})
			return
		}
		c.Redirect(http.StatusFound, tiendaPath(cfg.DefaultBrand, id))
	})

	r.GET("/tienda/:marca/:consultora_id", func(c *gin.Context) {
		brand := strings.ToLower(strings.TrimSpace(c.Param("marca")))
		consultant, ok := cfg.Catalog.Get(c.Param("consultora_id"))
		if !ok {
			c.HTML(http.StatusNotFound, "error.html", gin.H{"Message": consultantNotFound})
			return
		}
		c.HTML(http.StatusOK, "tienda.html", tiendaPage{
			Brand:      brand,
			Consultant: consultant,
			Products:   cfg.Catalog.List(brand),
		})
	})

	r.GET("/productos", func(c *gin.Context) {
		id := strings.TrimSpace(c.Query("consultora_id"))
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_consultant_id", "detail": "Falta ID de consultora"})
			return
		}
		if _, ok := cfg.Catalog.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_consultant", "detail": consultantNotFound})
			return
		}
		c.JSON(http.StatusOK, cfg.Catalog.List(c.Query("marca")))
	})

	r.GET("/consultoras", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.Catalog.Consultants())
	})

	r.POST("/links", func(c *gin.Context) {
		id := strings.TrimSpace(c.Query("consultora_id"))
		if _, ok := cfg.Catalog.Get(id); id == "" || !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_consultant", "detail": consultantNotFound})
			return
		}
		c.JSON(http.StatusOK, storeLink{
			ConsultantID: id,
			URL:          strings.TrimRight(cfg.PublicBaseURL, "/") + "/?consultora_id=" + url.QueryEscape(id),
		})
	})
}

func tiendaPath(brand, consultantID string) string {
	return "/tienda/" + url.PathEscape(brand) + "/" + url.PathEscape(consultantID)
}
