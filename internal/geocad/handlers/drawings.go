package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/service"
)

// ============================================================
// Drawing Handler
// ============================================================

type DrawingHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewDrawingHandler(svc *service.Service, log zerolog.Logger) *DrawingHandler {
	return &DrawingHandler{svc: svc, log: log}
}

// Register вешает все маршруты сервиса на router.
func (h *DrawingHandler) Register(r fiber.Router) {
	r.Get("/health/live", LivenessProbe)
	r.Get("/health/ready", h.ReadinessProbe)
	r.Get("/docs", SwaggerUI)
	r.Get("/docs/openapi.yaml", SwaggerSpec)

	r.Post("/drawings", h.CreateDrawing)
	r.Get("/drawings", h.ListDrawings)
	r.Get("/drawings/:id", h.GetDrawing)
	r.Patch("/drawings/:id", h.UpdateDrawing)
	r.Post("/drawings/:id/file", h.ReplaceFile)
	r.Delete("/drawings/:id", h.DeleteDrawing)
	r.Get("/drawings/:id/download", h.Download)
	r.Get("/drawings/:id/preview.svg", h.Preview)

	r.Post("/drawings/:id/layers", h.CreateLayer)
	r.Patch("/layers/:id", h.UpdateLayer)
	r.Delete("/layers/:id", h.DeleteLayer)

	r.Post("/drawings/:id/insertions", h.CreateInsertion)
	r.Patch("/insertions/:id", h.UpdateInsertion)
	r.Delete("/insertions/:id", h.DeleteInsertion)
	r.Post("/insertions/:id/explode", h.Explode)
}

// fail переводит ошибки сервиса в HTTP-статусы.
func (h *DrawingHandler) fail(c fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnreadableDocument), errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrDuplicateLayerName), errors.Is(err, models.ErrLayerHostsInsertions):
		status = http.StatusConflict
	case errors.Is(err, models.ErrReservedLayer),
		errors.Is(err, models.ErrDanglingBlockReference),
		errors.Is(err, models.ErrUnresolvableReferenceSystem):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func bind(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// uploaded читает необязательное поле multipart "file".
func uploaded(c fiber.Ctx) ([]byte, bool, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, false, nil
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".dxf" {
		return nil, true, errors.New("only dxf allowed")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, true, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	return data, true, err
}

// ============================================================
// Drawings
// ============================================================

type drawingPayload struct {
	Drawing    *models.Drawing     `json:"drawing"`
	Layers     []*models.Layer     `json:"layers"`
	Blocks     []*models.Layer     `json:"blocks"`
	Insertions []*models.Insertion `json:"insertions"`
}

func formFloat(c fiber.Ctx, key string) (float64, bool, error) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, true, err
}

// CreateDrawing принимает multipart-форму с необязательным DXF файлом.
func (h *DrawingHandler) CreateDrawing(c fiber.Ctx) error {
	in := service.DrawingInput{
		Title:   c.FormValue("title"),
		Intro:   c.FormValue("intro"),
		Private: c.FormValue("private") == "true",
	}

	lon, hasLon, errLon := formFloat(c, "lon")
	lat, hasLat, errLat := formFloat(c, "lat")
	if errLon != nil || errLat != nil || hasLon != hasLat {
		return badRequest(c, "lon and lat must be numbers given together")
	}
	if hasLon {
		in.Anchor = &models.LonLat{Lon: lon, Lat: lat}
	}
	for key, dst := range map[string]*float64{"rotation": &in.Rotation, "design_x": &in.DesignX, "design_y": &in.DesignY} {
		v, _, err := formFloat(c, key)
		if err != nil {
			return badRequest(c, key+" must be a number")
		}
		*dst = v
	}

	data, present, err := uploaded(c)
	if present && err != nil {
		return badRequest(c, err.Error())
	}

	d, err := h.svc.CreateDrawing(c.Context(), in, data)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(d)
}

func (h *DrawingHandler) ListDrawings(c fiber.Ctx) error {
	drawings, err := h.svc.ListDrawings(c.Context(), c.Query("private") == "true")
	if err != nil {
		return h.fail(c, err)
	}
	if drawings == nil {
		drawings = []*models.Drawing{}
	}
	return c.JSON(drawings)
}

func (h *DrawingHandler) GetDrawing(c fiber.Ctx) error {
	d, layers, insertions, err := h.svc.Contents(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	out := drawingPayload{Drawing: d, Layers: []*models.Layer{}, Blocks: []*models.Layer{}, Insertions: insertions}
	for _, l := range layers {
		if l.IsBlock {
			out.Blocks = append(out.Blocks, l)
		} else {
			out.Layers = append(out.Layers, l)
		}
	}
	if out.Insertions == nil {
		out.Insertions = []*models.Insertion{}
	}
	return c.JSON(out)
}

type drawingPatchRequest struct {
	Title    *string        `json:"title"`
	Intro    *string        `json:"intro"`
	Anchor   *models.LonLat `json:"anchor"`
	DesignX  *float64       `json:"design_x"`
	DesignY  *float64       `json:"design_y"`
	Rotation *float64       `json:"rotation"`
	Private  *bool          `json:"private"`
}

func (h *DrawingHandler) UpdateDrawing(c fiber.Ctx) error {
	var req drawingPatchRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	d, err := h.svc.UpdateDrawing(c.Context(), c.Params("id"), service.DrawingPatch(req))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(d)
}

// ReplaceFile загружает новый DXF и перезапускает извлечение.
func (h *DrawingHandler) ReplaceFile(c fiber.Ctx) error {
	data, present, err := uploaded(c)
	if !present {
		return badRequest(c, "file required")
	}
	if err != nil {
		return badRequest(c, err.Error())
	}
	d, err := h.svc.ReplaceFile(c.Context(), c.Params("id"), data)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(d)
}

func (h *DrawingHandler) DeleteDrawing(c fiber.Ctx) error {
	if err := h.svc.DeleteDrawing(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Download отдаёт актуальный DXF, перегенерируя его при необходимости.
func (h *DrawingHandler) Download(c fiber.Ctx) error {
	id := c.Params("id")
	path, err := h.svc.Download(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return h.fail(c, err)
	}
	c.Attachment(id + ".dxf")
	return c.Send(data)
}

// Preview отдаёт SVG-превью чертежа. ?width задаёт ширину в пикселях.
func (h *DrawingHandler) Preview(c fiber.Ctx) error {
	width := 800.0
	if raw := c.Query("width"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return badRequest(c, "width must be a positive number")
		}
		width = v
	}
	svg, err := h.svc.Preview(c.Context(), c.Params("id"), width)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.Send(svg)
}

// ============================================================
// Layers
// ============================================================

type layerRequest struct {
	Name       string              `json:"name"`
	Color      string              `json:"color"`
	Continuous *bool               `json:"linetype"`
	IsBlock    bool                `json:"is_block"`
	Geometry   geometry.Collection `json:"geometry"`
}

type layerPatchRequest struct {
	Name       *string              `json:"name"`
	Color      *string              `json:"color"`
	Continuous *bool                `json:"linetype"`
	IsBlock    *bool                `json:"is_block"`
	Geometry   *geometry.Collection `json:"geometry"`
}

func (h *DrawingHandler) CreateLayer(c fiber.Ctx) error {
	var req layerRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	continuous := true
	if req.Continuous != nil {
		continuous = *req.Continuous
	}
	l, err := h.svc.CreateLayer(c.Context(), c.Params("id"), service.LayerInput{
		Name:       req.Name,
		Color:      req.Color,
		Continuous: continuous,
		IsBlock:    req.IsBlock,
		Geometry:   req.Geometry,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(l)
}

func (h *DrawingHandler) UpdateLayer(c fiber.Ctx) error {
	var req layerPatchRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	l, err := h.svc.UpdateLayer(c.Context(), c.Params("id"), service.LayerPatch(req))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(l)
}

func (h *DrawingHandler) DeleteLayer(c fiber.Ctx) error {
	if err := h.svc.DeleteLayer(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Insertions
// ============================================================

type insertionRequest struct {
	BlockID  string    `json:"block_id"`
	LayerID  string    `json:"layer_id"`
	Point    orb.Point `json:"point"`
	Rotation float64   `json:"rotation"`
	XScale   float64   `json:"x_scale"`
	YScale   float64   `json:"y_scale"`
}

type insertionPatchRequest struct {
	BlockID  *string    `json:"block_id"`
	LayerID  *string    `json:"layer_id"`
	Point    *orb.Point `json:"point"`
	Rotation *float64   `json:"rotation"`
	XScale   *float64   `json:"x_scale"`
	YScale   *float64   `json:"y_scale"`
}

func (h *DrawingHandler) CreateInsertion(c fiber.Ctx) error {
	var req insertionRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ins, err := h.svc.CreateInsertion(c.Context(), c.Params("id"), service.InsertionInput{
		BlockID: req.BlockID,
		LayerID: req.LayerID,
		Placement: models.Placement{
			Point:    req.Point,
			Rotation: req.Rotation,
			XScale:   req.XScale,
			YScale:   req.YScale,
		},
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(ins)
}

func (h *DrawingHandler) UpdateInsertion(c fiber.Ctx) error {
	var req insertionPatchRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ins, err := h.svc.UpdateInsertion(c.Context(), c.Params("id"), service.InsertionPatch(req))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ins)
}

func (h *DrawingHandler) DeleteInsertion(c fiber.Ctx) error {
	if err := h.svc.DeleteInsertion(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Explode переносит геометрию вставки в её слой.
func (h *DrawingHandler) Explode(c fiber.Ctx) error {
	l, err := h.svc.Explode(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(l)
}
