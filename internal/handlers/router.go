package handlers

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orderflow/internal/logger"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Catalog is the read side of *catalog.Store.
type Catalog interface {
	Get(id string) (catalog.Consultant, bool)
	List(brand string) []catalog.Product
	Consultants() []catalog.Consultant
	Snapshot() *catalog.Snapshot
}

// Scheduler accepts a job for asynchronous dispatch. *dispatch.Queue and
// *aws.Publisher satisfy it.
type Scheduler interface {
	Enqueue(ctx context.Context, job dispatch.Job) error
}

// HandlerConfig groups dependencies for the storefront handlers.
type HandlerConfig struct {
	Catalog         Catalog
	Ledger          idempotency.Ledger
	Scheduler       Scheduler
	EmailEnabled    bool
	WhatsAppEnabled bool
	ChatSuffix      string

	DefaultBrand     string
	PublicBaseURL    string
	StaticDir        string
	StaticPrefix     string
	CORSAllowOrigins []string

	Logger *zap.Logger
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultBrand == "" {
		cfg.DefaultBrand = catalog.DefaultBrand
	}

	r := gin.New()
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))

	r.SetHTMLTemplate(template.Must(
		template.New("").Funcs(template.FuncMap{"price": formatPrice}).ParseFS(templatesFS, "templates/*.html"),
	))
	if cfg.StaticDir != "" && cfg.StaticPrefix != "" {
		r.Static(cfg.StaticPrefix, cfg.StaticDir)
	}

	RegisterHealthRoutes(r, cfg)
	RegisterStorefrontRoutes(r, cfg)
	RegisterOrdersRoutes(r, cfg)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", logger.RequestIDHeader},
		ExposeHeaders: []string{logger.RequestIDHeader, "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return "Consultar"
	}
	return "$" + p.Decimal.StringFixed(2)
}

// RegisterHealthRoutes exposes liveness plus catalog and queue state.
func RegisterHealthRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if cfg.Catalog != nil {
			snap := cfg.Catalog.Snapshot()
			products, consultants := snap.Counts()
			body["catalog"] = gin.H{
				"version":     snap.Version,
				"loaded_at":   snap.LoadedAt,
				"products":    products,
				"consultants": consultants,
			}
		}
		if s, ok := cfg.Scheduler.(interface{ Stats() dispatch.Stats }); ok {
			body["dispatch"] = s.Stats()
		}
		c.JSON(http.StatusOK, body)
	})
}
