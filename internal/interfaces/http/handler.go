// @title           Market Data Pipeline API
// @version         1.0
// @description     API for inspecting live order books, analytics, and the instrument directory

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	appinterfaces "marketpipe/internal/application/interfaces"
	appinstruments "marketpipe/internal/application/service/instruments"
	appmarketdata "marketpipe/internal/application/service/marketdata"
	domaininstruments "marketpipe/internal/domain/entity/instruments"
	domainmarketdata "marketpipe/internal/domain/entity/marketdata"
	infrainstruments "marketpipe/internal/infrastructure/instruments"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	instrumentsBasePath = "/api/v1/instruments"
	marketdataBasePath  = "/api/v1/marketdata"
)

var (
	errMissingUID    = errors.New("missing uid")
	errMissingSymbol = errors.New("symbol query param required")
	errMissingRange  = errors.New("from/to query params required")
)

type Handler struct {
	router      *gin.Engine
	instruments *appinstruments.Service
	marketdata  *appmarketdata.Service
	cache       *redis.Client
	cacheTTL    time.Duration
}

var _ appinterfaces.HTTPHandler = (*Handler)(nil)

func NewHandler(inst *appinstruments.Service, md *appmarketdata.Service, cache *redis.Client, cacheTTL time.Duration) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:      router,
		instruments: inst,
		marketdata:  md,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if h.instruments != nil {
		inst := h.router.Group(instrumentsBasePath)
		{
			inst.POST("/", h.createInstrument)
			inst.PUT("/", h.updateInstrument)
			inst.GET("/", h.getInstrument)
			inst.GET("/list", h.listInstruments)
			inst.DELETE("/", h.deleteInstrument)
		}
	}

	md := h.router.Group(marketdataBasePath)
	if h.cache != nil {
		md.Use(h.cacheMiddleware())
	}
	{
		books := md.Group("/books")
		{
			books.GET("/:symbol", h.getBookSnapshot)
			books.GET("/:symbol/top", h.getTopOfBook)
			books.GET("/:symbol/levels", h.getPriceLevels)
			books.GET("/:symbol/metrics", h.getBookMetrics)
		}

		md.GET("/updates/latest", h.getLatestUpdates)
		md.GET("/stats", h.getFeedStats)

		orderbooks := md.Group("/orderbooks")
		{
			orderbooks.GET("/", h.getOrderBooksRange)
			orderbooks.GET("/last", h.getOrderBooksLast)
		}
	}
}

// Book handlers

// getBookSnapshot returns the live depth-limited book for a symbol
// @Summary      Get book snapshot
// @Description  Get the current depth-limited order book for a symbol
// @Tags         books
// @Produce      json
// @Param        symbol  path      string  true   "Symbol"
// @Param        depth   query     int     false  "Max levels per side, default 10"
// @Success      200     {object}  domainmarketdata.OrderBookSnapshot
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /marketdata/books/{symbol} [get]
func (h *Handler) getBookSnapshot(c *gin.Context) {
	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("parse depth: %w", err))
			return
		}
		depth = parsed
	}
	snapshot, err := h.marketdata.GetSnapshot(c.Param("symbol"), depth)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// getTopOfBook returns the best bid and ask for a symbol
// @Summary      Get top of book
// @Description  Get the best bid and best ask for a symbol
// @Tags         books
// @Produce      json
// @Param        symbol  path      string  true  "Symbol"
// @Success      200     {object}  topOfBookResponse
// @Failure      404     {object}  map[string]string
// @Router       /marketdata/books/{symbol}/top [get]
func (h *Handler) getTopOfBook(c *gin.Context) {
	bid, ask, err := h.marketdata.GetTopOfBook(c.Param("symbol"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, topOfBookResponse{
		Symbol:  c.Param("symbol"),
		BestBid: bid,
		BestAsk: ask,
	})
}

// getPriceLevels returns depth levels for one side of a book
// @Summary      Get price levels
// @Description  Get up to depth levels for one side of a book, best first
// @Tags         books
// @Produce      json
// @Param        symbol  path      string  true   "Symbol"
// @Param        side    query     string  true   "bid or ask"
// @Param        depth   query     int     false  "Max levels, default 10"
// @Success      200     {array}   domainmarketdata.PriceLevel
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /marketdata/books/{symbol}/levels [get]
func (h *Handler) getPriceLevels(c *gin.Context) {
	side, err := domainmarketdata.NewSide(c.Query("side"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	depth := 10
	if raw := c.Query("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("parse depth: %w", err))
			return
		}
	}
	levels, err := h.marketdata.GetPriceLevels(c.Param("symbol"), side, depth)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if levels == nil {
		levels = []domainmarketdata.PriceLevel{}
	}
	c.JSON(http.StatusOK, levels)
}

// getBookMetrics returns derived analytics for a symbol
// @Summary      Get book metrics
// @Description  Get spread, mid price, VWAP, imbalance, and rolling statistics for a symbol
// @Tags         books
// @Produce      json
// @Param        symbol  path      string  true  "Symbol"
// @Success      200     {object}  bookMetricsResponse
// @Failure      404     {object}  map[string]string
// @Router       /marketdata/books/{symbol}/metrics [get]
func (h *Handler) getBookMetrics(c *gin.Context) {
	metrics, summary, err := h.marketdata.GetMetrics(c.Param("symbol"))
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, bookMetricsResponse{
		Symbol:  c.Param("symbol"),
		Metrics: metrics,
		Summary: summary,
	})
}

// getLatestUpdates returns the most recent raw updates
// @Summary      Get latest updates
// @Description  Get the most recent raw updates from the diagnostic buffer, oldest first
// @Tags         updates
// @Produce      json
// @Param        limit  query     int  false  "Max updates, default 50"
// @Success      200    {array}   domainmarketdata.MarketUpdate
// @Failure      400    {object}  map[string]string
// @Router       /marketdata/updates/latest [get]
func (h *Handler) getLatestUpdates(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("parse limit: %w", err))
			return
		}
		limit = parsed
	}
	updates, err := h.marketdata.GetLatestUpdates(limit)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if updates == nil {
		updates = []domainmarketdata.MarketUpdate{}
	}
	c.JSON(http.StatusOK, updates)
}

// getFeedStats returns feed acceptance and anomaly counters
// @Summary      Get feed stats
// @Description  Get counters for accepted updates, gaps, and crossed book detections
// @Tags         updates
// @Produce      json
// @Success      200  {object}  ingestion.FeedStats
// @Router       /marketdata/stats [get]
func (h *Handler) getFeedStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.marketdata.GetFeedStats())
}

// Snapshot history handlers

// getOrderBooksRange returns stored snapshots in a time range
// @Summary      Get stored snapshots in range
// @Description  Get persisted order book snapshots for a symbol between two RFC3339 timestamps
// @Tags         orderbooks
// @Produce      json
// @Param        symbol  query     string  true  "Symbol"
// @Param        from    query     string  true  "RFC3339 range start"
// @Param        to      query     string  true  "RFC3339 range end"
// @Success      200     {array}   domainmarketdata.OrderBookSnapshot
// @Failure      400     {object}  map[string]string
// @Failure      503     {object}  map[string]string
// @Router       /marketdata/orderbooks [get]
func (h *Handler) getOrderBooksRange(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	from, to, err := parseTimeRange(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	snapshots, err := h.marketdata.GetSnapshotsBetween(c.Request.Context(), symbol, from, to)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if snapshots == nil {
		snapshots = []domainmarketdata.OrderBookSnapshot{}
	}
	c.JSON(http.StatusOK, snapshots)
}

// getOrderBooksLast returns the most recent stored snapshots
// @Summary      Get last stored snapshots
// @Description  Get the most recently persisted order book snapshots for a symbol
// @Tags         orderbooks
// @Produce      json
// @Param        symbol  query     string  true  "Symbol"
// @Param        limit   query     int     true  "Max snapshots"
// @Success      200     {array}   domainmarketdata.OrderBookSnapshot
// @Failure      400     {object}  map[string]string
// @Failure      503     {object}  map[string]string
// @Router       /marketdata/orderbooks/last [get]
func (h *Handler) getOrderBooksLast(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	limit, err := parseIntQuery(c, "limit")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	snapshots, err := h.marketdata.GetLastSnapshots(c.Request.Context(), symbol, limit)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if snapshots == nil {
		snapshots = []domainmarketdata.OrderBookSnapshot{}
	}
	c.JSON(http.StatusOK, snapshots)
}

// Instruments handlers

// createInstrument creates a new instrument
// @Summary      Create instrument
// @Description  Create a new entry in the instrument directory
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Param        instrument  body      instrumentPayload  true  "Instrument data"
// @Success      201         {object}  domaininstruments.Instrument
// @Failure      400         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /instruments [post]
func (h *Handler) createInstrument(c *gin.Context) {
	var payload instrumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	inst, err := payload.toDomain()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.instruments.CreateInstrument(c.Request.Context(), inst); err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, inst)
}

// updateInstrument updates an existing instrument
// @Summary      Update instrument
// @Description  Update an existing entry in the instrument directory
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Param        instrument  body      instrumentPayload  true  "Instrument data with UID"
// @Success      200         {object}  domaininstruments.Instrument
// @Failure      400         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /instruments [put]
func (h *Handler) updateInstrument(c *gin.Context) {
	var payload instrumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if payload.UID == "" {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	inst, err := payload.toDomain()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.instruments.UpdateInstrument(c.Request.Context(), inst); err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// getInstrument retrieves an instrument by UID or symbol
// @Summary      Get instrument
// @Description  Get an instrument by UID or by symbol
// @Tags         instruments
// @Produce      json
// @Param        uid     query     string  false  "Instrument UID"
// @Param        symbol  query     string  false  "Instrument symbol"
// @Success      200     {object}  domaininstruments.Instrument
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /instruments [get]
func (h *Handler) getInstrument(c *gin.Context) {
	if symbol := c.Query("symbol"); symbol != "" {
		inst, err := h.instruments.GetInstrumentBySymbol(c.Request.Context(), symbol)
		if err != nil {
			writeError(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, inst)
		return
	}
	uid, err := uuid.Parse(c.Query("uid"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	inst, err := h.instruments.GetInstrument(c.Request.Context(), uid)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// listInstruments lists the instrument directory
// @Summary      List instruments
// @Description  List all instruments ordered by symbol
// @Tags         instruments
// @Produce      json
// @Success      200  {array}   domaininstruments.Instrument
// @Failure      500  {object}  map[string]string
// @Router       /instruments/list [get]
func (h *Handler) listInstruments(c *gin.Context) {
	instruments, err := h.instruments.ListInstruments(c.Request.Context())
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if instruments == nil {
		instruments = []domaininstruments.Instrument{}
	}
	c.JSON(http.StatusOK, instruments)
}

// deleteInstrument deletes an instrument by UID
// @Summary      Delete instrument
// @Description  Delete an instrument by UID
// @Tags         instruments
// @Produce      json
// @Param        uid   query     string  true  "Instrument UID"
// @Success      204   "No Content"
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /instruments [delete]
func (h *Handler) deleteInstrument(c *gin.Context) {
	uid, err := uuid.Parse(c.Query("uid"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingUID)
		return
	}
	if err := h.instruments.DeleteInstrument(c.Request.Context(), uid); err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Helpers

type topOfBookResponse struct {
	Symbol  string                       `json:"symbol"`
	BestBid *domainmarketdata.PriceLevel `json:"best_bid"`
	BestAsk *domainmarketdata.PriceLevel `json:"best_ask"`
}

type bookMetricsResponse struct {
	Symbol  string                            `json:"symbol"`
	Metrics *domainmarketdata.MarketMetrics   `json:"metrics"`
	Summary domainmarketdata.AnalyticsSummary `json:"summary"`
}

type instrumentPayload struct {
	UID            string `json:"uid,omitempty"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	AssetClass     string `json:"asset_class"`
	TickSize       string `json:"tick_size"`
	ReferencePrice string `json:"reference_price"`
}

func (p instrumentPayload) toDomain() (*domaininstruments.Instrument, error) {
	assetClass, err := domaininstruments.NewAssetClass(p.AssetClass)
	if err != nil {
		return nil, err
	}
	tickSize, err := decimal.NewFromString(p.TickSize)
	if err != nil {
		return nil, fmt.Errorf("parse tick_size: %w", err)
	}
	referencePrice, err := decimal.NewFromString(p.ReferencePrice)
	if err != nil {
		return nil, fmt.Errorf("parse reference_price: %w", err)
	}
	inst := &domaininstruments.Instrument{
		Symbol:         p.Symbol,
		Name:           p.Name,
		AssetClass:     assetClass,
		TickSize:       tickSize,
		ReferencePrice: referencePrice,
	}
	if p.UID != "" {
		uid, err := uuid.Parse(p.UID)
		if err != nil {
			return nil, err
		}
		inst.UID = uid
	}
	return inst, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, appmarketdata.ErrUnknownSymbol),
		errors.Is(err, infrainstruments.ErrInstrumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, appmarketdata.ErrInvalidDepth),
		errors.Is(err, appmarketdata.ErrInvalidLimit),
		errors.Is(err, appmarketdata.ErrInvalidSide),
		errors.Is(err, appinstruments.ErrNilInstrument),
		errors.Is(err, appinstruments.ErrEmptySymbol):
		return http.StatusBadRequest
	case errors.Is(err, appmarketdata.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery)
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, fmt.Errorf("%s query param required", key)
	}
	return strconv.Atoi(value)
}

func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errMissingRange
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
