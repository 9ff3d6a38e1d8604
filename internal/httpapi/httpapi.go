// Package httpapi exposes the read-only query surface from §4.7: table
// introspection, filtered reads, balance aggregates, sync lag, and an
// arbitrary-SQL escape hatch guarded by a mutating-keyword screen. Built
// on gin, the router the rest of the retrieved rollup tooling (aggkit)
// already uses for its own bridge service.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rollupfed/indexer/internal/indexer"
	"github.com/rollupfed/indexer/internal/store"
)

// forbiddenKeywords rejects any /query statement that could mutate the
// store; this is a best-effort keyword screen, not a parser (§4.7).
var forbiddenKeywords = []string{
	"insert", "update", "delete", "create", "drop", "alter", "truncate", "replace",
}

// API wires the Store and the per-rollup Handles into gin routes.
type API struct {
	store   *store.Store
	handles map[uint32]*indexer.Handle
	engine  *gin.Engine
}

// New builds the router. Route registration happens here so Server can
// be called once the caller is ready to start listening.
func New(st *store.Store, handles []*indexer.Handle) *API {
	byID := make(map[uint32]*indexer.Handle, len(handles))
	for _, h := range handles {
		byID[h.RollupID] = h
	}
	a := &API{store: st, handles: byID}
	a.engine = gin.New()
	a.engine.Use(gin.Recovery())
	a.register()
	return a
}

// Server returns an *http.Server bound to addr and ready to ListenAndServe.
func (a *API) Server(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: a.engine}
}

func (a *API) register() {
	a.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	a.engine.GET("/tables", a.listTables)
	a.engine.GET("/table/:name", a.tableRows)
	a.engine.GET("/table/:name/filter", a.tableFilter)
	a.engine.GET("/wrapped_balance", a.wrappedBalance)
	a.engine.GET("/bridge_balance", a.bridgeBalance)
	a.engine.GET("/sync/:rollup_id", a.sync)
	a.engine.GET("/query", a.query)
}

func (a *API) listTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": a.store.ListTables()})
}

func (a *API) tableRows(c *gin.Context) {
	name := c.Param("name")
	limit := parseLimit(c)
	rows, err := a.store.Rows(name, limit)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (a *API) tableFilter(c *gin.Context) {
	name := c.Param("name")
	limit := parseLimit(c)
	filters := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if k == "limit" || len(v) == 0 {
			continue
		}
		filters[k] = v[0]
	}
	rows, err := a.store.FilterRows(name, filters, limit)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (a *API) wrappedBalance(c *gin.Context) {
	rollupID, ok := parseRollupID(c, c.Query("rollup_id"))
	if !ok {
		return
	}
	token := c.Query("token_address")
	balance, err := a.store.WrappedBalance(rollupID, token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rollup_id": rollupID, "token_address": token, "balance": balance.String()})
}

func (a *API) bridgeBalance(c *gin.Context) {
	rollupID, ok := parseRollupID(c, c.Query("rollup_id"))
	if !ok {
		return
	}
	token := c.Query("token_address")
	balance, err := a.store.BridgeBalance(rollupID, token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rollup_id": rollupID, "token_address": token, "balance": balance.String()})
}

func (a *API) sync(c *gin.Context) {
	rollupID, ok := parseRollupID(c, c.Param("rollup_id"))
	if !ok {
		return
	}
	h, ok := a.handles[rollupID]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": "unknown rollup_id"})
		return
	}
	lag, err := h.SyncLag(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rollup_id": rollupID, "distance_to_head": lag})
}

func (a *API) query(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q parameter"})
		return
	}
	lower := strings.ToLower(q)
	for _, kw := range forbiddenKeywords {
		if strings.Contains(lower, kw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mutating statements are not permitted"})
			return
		}
	}
	rows, err := a.store.RawQuery(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func parseLimit(c *gin.Context) int {
	v := c.Query("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func parseRollupID(c *gin.Context, raw string) (uint32, bool) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "invalid rollup_id"})
		return 0, false
	}
	return uint32(n), true
}
