package api

import "github.com/gin-gonic/gin"

// HealthHandler provides liveness and readiness endpoints for the service.
//
// Responsibilities:
//   - /healthz: Basic liveness probe (always returns 200 OK).
//   - /readyz: Readiness probe (depends on database connectivity).
type HealthHandler struct {
	dbPing    func() error // Function to check database connectivity
	cachePing func() error // Optional; the query cache is not required for readiness
}

// NewHealthHandler constructs a HealthHandler.
//
// Parameters:
//   - dbPing (func() error): checks the database, typically db.Ping.
//   - cachePing (func() error): checks the query cache, nil when caching is disabled.
//
// Returns:
//   - *HealthHandler: A new handler instance.
func NewHealthHandler(dbPing, cachePing func() error) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, cachePing: cachePing}
}

// Register mounts the health and readiness endpoints into the provided Gin router.
//
// Routes:
//   - GET /healthz: Always returns 200 OK.
//   - GET /readyz: 200 OK if dbPing succeeds, 503 otherwise. A failing cache
//     is reported in the body but does not change the status.
func (h *HealthHandler) Register(r *gin.Engine) {
	// Liveness probe (just checks if the service is up)
	// @Summary      Liveness probe
	// @Description  Always returns OK if the service is running
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]string
	// @Router       /healthz [get]
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness probe (checks DB connection, reports cache state)
	// @Summary      Readiness probe
	// @Description  Returns ready if the database is reachable
	// @Tags         health
	// @Produce      json
	// @Success      200  {object}  map[string]string
	// @Failure      503  {object}  map[string]string
	// @Router       /readyz [get]
	r.GET("/readyz", func(c *gin.Context) {
		body := gin.H{"status": "ready"}
		if h.cachePing != nil {
			body["cache"] = "ok"
			if h.cachePing() != nil {
				body["cache"] = "unavailable"
			}
		}
		if h.dbPing != nil && h.dbPing() != nil {
			body["status"] = "degraded"
			c.JSON(503, body)
			return
		}
		c.JSON(200, body)
	})
}
