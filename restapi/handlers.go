// Package restapi surfaces a keydb store adapter over HTTP for inspection and manual repair:
// point reads and writes, batch commits and the committed height. Keys and values travel hex
// encoded in paths and JSON, raw in request and response bodies.
package restapi

import (
	"encoding/hex"
	"fmt"
	"net/http"

	log "log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware
	"golang.org/x/sync/errgroup"

	"github.com/sharedcode/keydb"
	"github.com/sharedcode/keydb/redis"
	"github.com/sharedcode/keydb/restapi/docs"
)

// maxBatchGetFanOut bounds concurrent reads for one batchget request.
const maxBatchGetFanOut = 8

// Server holds the adapter the handlers operate on.
type Server struct {
	adapter *redis.Adapter
}

// NewServer returns a Server over adapter.
func NewServer(adapter *redis.Adapter) *Server {
	return &Server{adapter: adapter}
}

// Register adds the Server's methods to registry.
func (s *Server) Register(registry *Registry) error {
	for _, m := range []RestMethod{
		{GET, "/height", s.GetHeight},
		{GET, "/kv/:key", s.GetValue},
		{PUT, "/kv/:key", s.PutValue},
		{DELETE, "/kv/:key", s.DeleteValue},
		{POST, "/batchget", s.BatchGet},
		{POST, "/batch", s.WriteBatch},
	} {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// NewRouter builds the gin engine: the Server's methods under /api/v1 behind verify, and
// /metrics and /swagger unauthenticated.
//
// Regenerate the swagger docs with: swag init -g handlers.go -d restapi -o restapi/docs
//
// @title keydb API
// @description Inspection and repair of a keydb store. Keys in paths and JSON are hex encoded.
// @BasePath /api/v1
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func NewRouter(s *Server, verify TokenVerifier) (*gin.Engine, error) {
	registry := NewRegistry()
	if err := s.Register(registry); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registry.mount(router.Group("/api/v1"), verify)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return router, nil
}

type heightResponse struct {
	Committed uint32 `json:"committed"`
	Marker    uint32 `json:"marker"`
}

// @Summary GetHeight returns the committed height
// @Schemes
// @Description GetHeight responds with the committed height (0 when none is recorded) and the adapter's in-memory marker.
// @Tags Height
// @Produce json
// @Success 200 {object} heightResponse
// @Failure 500 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /height [get]
// @Security Bearer
func (s *Server) GetHeight(c *gin.Context) {
	conn, err := s.adapter.Connect(c)
	if err != nil {
		respondError(c, err)
		return
	}
	defer conn.Close()

	h, err := redis.QueryHeight(c, conn, s.adapter.Options().ReservedKey(), 0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, heightResponse{Committed: h, Marker: s.adapter.Height()})
}

// @Summary GetValue returns the value of a key
// @Schemes
// @Description GetValue responds with the raw value of the hex encoded key, 404 when absent.
// @Tags Keys
// @Produce octet-stream
// @Param			key	path		string		true	"Hex encoded key"
// @Success 200 {string} string
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /kv/{key} [get]
// @Security Bearer
func (s *Server) GetValue(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	v, found, err := s.adapter.Get(c, key)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("key %s not found", c.Param("key"))})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", v)
}

// @Summary PutValue sets a key outside any batch
// @Schemes
// @Description PutValue stores the raw request body under the hex encoded key.
// @Tags Keys
// @Accept octet-stream
// @Param			key	path		string		true	"Hex encoded key"
// @Success 204
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /kv/{key} [put]
// @Security Bearer
func (s *Server) PutValue(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	value, err := c.GetRawData()
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("reading body failed, error: %v", err)})
		return
	}
	if err := s.adapter.Put(c, key, value); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary DeleteValue removes a key
// @Schemes
// @Description DeleteValue removes the hex encoded key. Deleting an absent key succeeds.
// @Tags Keys
// @Param			key	path		string		true	"Hex encoded key"
// @Success 204
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /kv/{key} [delete]
// @Security Bearer
func (s *Server) DeleteValue(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	if err := s.adapter.Delete(c, key); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type batchGetRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

type batchGetResponse struct {
	Values map[string]string `json:"values"`
}

// @Summary BatchGet reads several keys
// @Schemes
// @Description BatchGet reads several hex encoded keys; absent keys are omitted from the response.
// @Tags Keys
// @Accept json
// @Produce json
// @Param			request	body		batchGetRequest		true	"Keys to read"
// @Success 200 {object} batchGetResponse
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /batchget [post]
// @Security Bearer
func (s *Server) BatchGet(c *gin.Context) {
	var req batchGetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid request, error: %v", err)})
		return
	}
	keys := make([][]byte, len(req.Keys))
	for i, k := range req.Keys {
		b, err := hex.DecodeString(k)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("key %q is not hex", k)})
			return
		}
		keys[i] = b
	}

	values := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	g, ctx := errgroup.WithContext(c)
	g.SetLimit(maxBatchGetFanOut)
	for i := range keys {
		g.Go(func() error {
			v, ok, err := s.adapter.Get(ctx, keys[i])
			values[i], found[i] = v, ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}

	resp := batchGetResponse{Values: make(map[string]string)}
	for i, k := range req.Keys {
		if found[i] {
			resp.Values[k] = hex.EncodeToString(values[i])
		}
	}
	c.IndentedJSON(http.StatusOK, resp)
}

type batchEntry struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

type batchRequest struct {
	// Height, when set, is stamped with this batch instead of the adapter's marker.
	Height  *uint32      `json:"height"`
	Entries []batchEntry `json:"entries"`
}

type batchResponse struct {
	Batch  string `json:"batch"`
	Height uint32 `json:"height"`
}

// @Summary WriteBatch commits entries as one batch
// @Schemes
// @Description WriteBatch commits the entries and the height atomically. Without a height the adapter's marker is stamped.
// @Tags Batches
// @Accept json
// @Produce json
// @Param			request	body		batchRequest		true	"Entries and optional height"
// @Success 200 {object} batchResponse
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /batch [post]
// @Security Bearer
func (s *Server) WriteBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid request, error: %v", err)})
		return
	}
	b := s.adapter.NewBatch()
	for _, e := range req.Entries {
		k, err := hex.DecodeString(e.Key)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("key %q is not hex", e.Key)})
			return
		}
		v, err := hex.DecodeString(e.Value)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("value of key %q is not hex", e.Key)})
			return
		}
		b.Put(k, v)
	}
	height := s.adapter.Height()
	if req.Height != nil {
		height = *req.Height
	}
	if err := s.adapter.WriteAt(c, b, height); err != nil {
		respondError(c, err)
		return
	}
	log.Info("Batch committed over REST", "batch", b.ID(), "entries", b.Len(), "height", height)
	c.IndentedJSON(http.StatusOK, batchResponse{Batch: b.ID().String(), Height: height})
}

func keyParam(c *gin.Context) ([]byte, bool) {
	key, err := hex.DecodeString(c.Param("key"))
	if err != nil || len(key) == 0 {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("key %q is not hex", c.Param("key"))})
		return nil, false
	}
	return key, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case keydb.IsErrorCode(err, keydb.ReservedKeyViolation):
		status = http.StatusForbidden
	case keydb.IsErrorCode(err, keydb.BatchConsumed):
		status = http.StatusConflict
	case keydb.IsErrorCode(err, keydb.ConnectionFailure),
		keydb.IsErrorCode(err, keydb.StoreFailure),
		keydb.IsErrorCode(err, keydb.WriteFailure):
		status = http.StatusBadGateway
	}
	log.Warn("REST request failed", "path", c.FullPath(), "status", status, "error", err)
	c.IndentedJSON(status, gin.H{"message": err.Error()})
}
