package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"salesdash/internal/engine"
	"salesdash/internal/models"
	"salesdash/internal/render"
	"salesdash/internal/session"
)

const (
	sessionCookie = "salesdash_session"

	mimeArrowStream = "application/vnd.apache.arrow.stream"
)

type Config struct {
	Logger      *slog.Logger
	Sessions    *session.Store
	Formatter   *render.Formatter
	Metrics     *Metrics
	Workers     int
	PreviewRows int
	// ClickRate limits click and reset requests per second per client IP.
	ClickRate float64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Formatter == nil {
		return errors.New("formatter is required")
	}
	if cfg.Metrics == nil {
		return errors.New("metrics are required")
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 100
	}
	if cfg.ClickRate <= 0 {
		cfg.ClickRate = 20
	}
	return nil
}

// Handler serves the dashboard. It answers 503 on every data endpoint until
// SetData is called, or for good once SetError is.
type Handler struct {
	log       *slog.Logger
	cfg       Config
	sessions  *session.Store
	charts    *render.ChartRenderer
	templates *render.Templates

	mu      sync.RWMutex
	store   *engine.ColumnStore
	loadErr error
}

func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	templates, err := render.NewTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		log:       cfg.Logger,
		cfg:       cfg,
		sessions:  cfg.Sessions,
		charts:    render.NewChartRenderer(cfg.Formatter),
		templates: templates,
	}, nil
}

// SetData publishes the loaded dataset.
func (h *Handler) SetData(cs *engine.ColumnStore) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store = cs
	h.loadErr = nil
}

// SetError records a load failure; data endpoints report it from now on.
func (h *Handler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadErr = err
}

func (h *Handler) dataset() (*engine.ColumnStore, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	if h.store == nil {
		return nil, errNotReady
	}
	return h.store, nil
}

// RegisterRoutes mounts every route and installs the HTML renderer on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Renderer = h.templates

	burst := max(1, int(math.Ceil(h.cfg.ClickRate)))
	clickLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(h.cfg.ClickRate),
			Burst: burst,
		}),
	})

	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)

	e.GET("/", h.GetPage)
	e.POST("/click", h.PostClickForm, clickLimiter)
	e.POST("/reset", h.PostResetForm, clickLimiter)
	e.GET("/charts/:file", h.GetChart)

	api := e.Group("/api")
	api.GET("/dimensions", h.GetDimensions)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/session", h.GetSession)
	api.GET("/rows", h.GetRows)
	api.GET("/rows.arrow", h.GetRowsArrow)
	api.POST("/clicks", h.PostClick, clickLimiter)
	api.POST("/clicks/reset", h.PostReset, clickLimiter)
}

// sessionID returns the caller's session, issuing a cookie on first contact.
func (h *Handler) sessionID(c echo.Context) string {
	if ck, err := c.Cookie(sessionCookie); err == nil && session.ValidID(ck.Value) {
		return ck.Value
	}
	id := h.sessions.NewID()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ready", "rows": cs.Len(), "source": cs.Source})
}

func (h *Handler) GetDimensions(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	clickable := session.ClickableDimensions()
	out := make([]models.DimensionInfo, 0, engine.NumDimensions)
	for _, d := range engine.Dimensions() {
		info := models.DimensionInfo{Key: d.Key(), Column: d.Column(), Values: cs.Domain(d)}
		for _, cd := range clickable {
			info.Clickable = info.Clickable || cd == d
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	id := h.sessionID(c)
	res := h.compute(cs, id, h.sessions.Snapshot(id), c.QueryParams(), "view")
	return c.JSON(http.StatusOK, res.dash)
}

func (h *Handler) GetSession(c echo.Context) error {
	id := h.sessionID(c)
	return c.JSON(http.StatusOK, sessionState(id, h.sessions.Snapshot(id)))
}

// GetRows pages through the filtered table.
func (h *Handler) GetRows(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	id := h.sessionID(c)
	st := h.sessions.Snapshot(id)
	view := cs.Filter(st.Effective(sidebarSelections(cs, c.QueryParams())))

	limit, offset := getPaginationParams(c, h.cfg.PreviewRows)
	return c.JSON(http.StatusOK, table(view, offset, limit))
}

// GetRowsArrow streams the whole filtered table as Arrow IPC.
func (h *Handler) GetRowsArrow(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	id := h.sessionID(c)
	st := h.sessions.Snapshot(id)
	view := cs.Filter(st.Effective(sidebarSelections(cs, c.QueryParams())))

	var buf bytes.Buffer
	if err := render.WriteArrow(&buf, view); err != nil {
		return h.internalError(c, err, "failed to export rows")
	}
	return c.Blob(http.StatusOK, mimeArrowStream, buf.Bytes())
}

// PostClick applies a chart click. The dashboard is recomputed and returned
// only when the click changed the session state.
func (h *Handler) PostClick(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	var req models.ClickRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid click payload").SetInternal(err)
	}
	if req.Chart == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chart is required")
	}

	id := h.sessionID(c)
	var resp models.ClickResponse
	err = h.sessions.Do(id, func(cur session.State) (session.State, error) {
		next, tr := h.applyClick(cs, cur, req)
		resp.Changed = tr.Dirty()
		resp.Transition = tr.String()
		resp.Session = sessionState(id, next)
		if tr.Dirty() {
			resp.Dashboard = h.compute(cs, id, next, c.QueryParams(), "click").dash
		}
		return next, nil
	})
	if err != nil {
		return h.internalError(c, err, "failed to apply click")
	}
	return c.JSON(http.StatusOK, resp)
}

// PostReset clears every click override. It always recomputes.
func (h *Handler) PostReset(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	id := h.sessionID(c)
	var resp models.ClickResponse
	err = h.sessions.Do(id, func(cur session.State) (session.State, error) {
		next, tr := cur.Apply(session.ResetAll())
		h.cfg.Metrics.resets.Inc()
		resp.Changed = tr.Dirty()
		resp.Transition = tr.String()
		resp.Session = sessionState(id, next)
		resp.Dashboard = h.compute(cs, id, next, c.QueryParams(), "reset").dash
		return next, nil
	})
	if err != nil {
		return h.internalError(c, err, "failed to reset")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) applyClick(cs *engine.ColumnStore, cur session.State, req models.ClickRequest) (session.State, session.Transition) {
	dimension := "unknown"
	if chart, ok := session.ChartByName(req.Chart); ok {
		dimension = chart.Dimension.Key()
	}

	ev, ok := session.Resolve(cs, session.Click{Chart: req.Chart, Label: req.Label, PointIndex: req.PointIndex})
	if !ok {
		h.cfg.Metrics.click(dimension, session.None)
		h.log.Debug("unresolvable click ignored", "chart", req.Chart, "label", req.Label)
		return cur, session.None
	}
	next, tr := cur.Apply(ev)
	h.cfg.Metrics.click(dimension, tr)
	h.log.Debug("click applied", "chart", req.Chart, "value", ev.Value, "transition", tr.String())
	return next, tr
}

// --- HTML ---

func (h *Handler) GetPage(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return c.Render(http.StatusServiceUnavailable, render.PageTemplate, &render.Page{Error: err.Error()})
	}
	id := h.sessionID(c)
	res := h.compute(cs, id, h.sessions.Snapshot(id), c.QueryParams(), "view")

	var preview *models.Table
	if !res.view.Empty() {
		preview = table(res.view, 0, h.cfg.PreviewRows)
	}
	query := sidebarQuery(c.QueryParams()).Encode()
	return c.Render(http.StatusOK, render.PageTemplate, render.NewPage(res.dash, preview, query, h.cfg.Formatter))
}

// PostClickForm is the form variant of PostClick; it redirects back to the
// page with the sidebar selection preserved.
func (h *Handler) PostClickForm(c echo.Context) error {
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	req := models.ClickRequest{Chart: c.FormValue("chart"), Label: c.FormValue("label")}
	if raw := c.FormValue("point_index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "point_index must be an integer")
		}
		req.PointIndex = &i
	}

	id := h.sessionID(c)
	err = h.sessions.Do(id, func(cur session.State) (session.State, error) {
		next, _ := h.applyClick(cs, cur, req)
		return next, nil
	})
	if err != nil {
		return h.internalError(c, err, "failed to apply click")
	}
	return c.Redirect(http.StatusSeeOther, returnURL(c.FormValue("return")))
}

func (h *Handler) PostResetForm(c echo.Context) error {
	id := h.sessionID(c)
	err := h.sessions.Do(id, func(cur session.State) (session.State, error) {
		next, _ := cur.Apply(session.ResetAll())
		h.cfg.Metrics.resets.Inc()
		return next, nil
	})
	if err != nil {
		return h.internalError(c, err, "failed to reset")
	}
	return c.Redirect(http.StatusSeeOther, returnURL(c.FormValue("return")))
}

// returnURL rebuilds the page URL from a posted query string, dropping
// anything that is not a sidebar selection.
func returnURL(raw string) string {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "/"
	}
	if enc := sidebarQuery(q).Encode(); enc != "" {
		return "/?" + enc
	}
	return "/"
}

// GetChart renders one chart as PNG for the caller's session and sidebar
// selection. Responses carry a content hash ETag.
func (h *Handler) GetChart(c echo.Context) error {
	name, ok := strings.CutSuffix(c.Param("file"), ".png")
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown chart")
	}
	cs, err := h.dataset()
	if err != nil {
		return datasetError(err)
	}
	id := h.sessionID(c)
	st := h.sessions.Snapshot(id)
	res := h.compute(cs, id, st, c.QueryParams(), "chart")

	var highlight string
	if chart, ok := session.ChartByName(name); ok {
		highlight = st.Overrides()[chart.Dimension.Key()]
	}

	var buf bytes.Buffer
	err = h.charts.Render(&buf, name, res.dash.Data, highlight)
	switch {
	case errors.Is(err, render.ErrUnknownChart):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown chart %q", name))
	case errors.Is(err, render.ErrNoChartData):
		return c.NoContent(http.StatusNoContent)
	case err != nil:
		return h.internalError(c, err, "failed to render chart")
	}

	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(buf.Bytes()))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
