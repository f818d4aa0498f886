package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/instance"
	"geocad/internal/geocad/mapper"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/repository"
	"geocad/internal/geocad/transform"
)

// ============================================================
// Service
// ============================================================

// Service владеет всеми изменениями чертежа. Работа над одним чертежом
// идёт последовательно, разные чертежи обрабатываются параллельно.
type Service struct {
	store     repository.Store
	files     *FileStorage
	geo       geodesy.Provider
	extractor *mapper.Extractor
	regen     *mapper.Regenerator
	locks     *keyedMutex
	log       zerolog.Logger
}

func New(store repository.Store, files *FileStorage, geo geodesy.Provider, entityCap int, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		files:     files,
		geo:       geo,
		extractor: mapper.NewExtractor(entityCap, log),
		regen:     mapper.NewRegenerator(log),
		locks:     newKeyedMutex(),
		log:       log,
	}
}

// commit пишет флаг stale один раз и только если события его меняют.
func (s *Service) commit(ctx context.Context, d *models.Drawing, events []Event) error {
	cur := StateOf(d.Stale)
	next := Fold(cur, events)
	if next == cur {
		return nil
	}
	if err := s.store.SetStale(ctx, d.ID, next.Stale()); err != nil {
		return fmt.Errorf("mark drawing %s %s: %w", d.ID, next, err)
	}
	d.Stale = next.Stale()
	s.log.Debug().Str("drawing_id", d.ID).Int("events", len(events)).Stringer("state", next).Msg("drawing state changed")
	return nil
}

func parse(cad []byte) (*dxf.Document, error) {
	doc, err := dxf.Parse(cad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnreadableDocument, err)
	}
	return doc, nil
}

func defaultLayer(drawingID string) *models.Layer {
	return &models.Layer{
		DrawingID:  drawingID,
		Name:       models.DefaultLayer,
		Color:      "#FFFFFF",
		Continuous: true,
		Geometry:   geometry.Collection{},
	}
}

// ============================================================
// Drawings
// ============================================================

type DrawingInput struct {
	Title    string
	Intro    string
	Anchor   *models.LonLat
	DesignX  float64
	DesignY  float64
	Rotation float64
	Private  bool
}

// DrawingPatch несёт поля для изменения; nil-поля не трогаются.
type DrawingPatch struct {
	Title    *string
	Intro    *string
	Anchor   *models.LonLat
	DesignX  *float64
	DesignY  *float64
	Rotation *float64
	Private  *bool
}

// CreateDrawing сохраняет чертёж и, если передан cad, извлекает его.
// Нечитаемый файл отклоняется до любой записи.
func (s *Service) CreateDrawing(ctx context.Context, in DrawingInput, cad []byte) (*models.Drawing, error) {
	var doc *dxf.Document
	if len(cad) > 0 {
		var err error
		if doc, err = parse(cad); err != nil {
			return nil, err
		}
	}

	d := &models.Drawing{
		Title:    in.Title,
		Intro:    in.Intro,
		Anchor:   in.Anchor,
		DesignX:  in.DesignX,
		DesignY:  in.DesignY,
		Rotation: in.Rotation,
		Private:  in.Private,
		Stale:    true,
	}
	if err := s.store.CreateDrawing(ctx, d); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(d.ID)
	defer unlock()

	if doc == nil {
		if err := s.store.ReplaceContents(ctx, d.ID, []*models.Layer{defaultLayer(d.ID)}, nil); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err := s.extract(ctx, d, doc, cad); err != nil {
		if derr := errors.Join(s.store.DeleteDrawing(ctx, d.ID), s.files.Remove(d.ID)); derr != nil {
			s.log.Error().Err(derr).Str("drawing_id", d.ID).Msg("drop half-created drawing")
		}
		return nil, err
	}
	return d, nil
}

// extract пересобирает слои и вставки d из doc. Порядок записи: содержимое,
// затем файл cad (если передан), затем строка чертежа. Если ReplaceContents
// падает, ни файл, ни чертёж не меняются. Чертёж без определимой системы
// координат получает только слой "0".
func (s *Service) extract(ctx context.Context, d *models.Drawing, doc *dxf.Document, cad []byte) error {
	log := s.log.With().Str("drawing_id", d.ID).Logger()
	d.Stale = true

	layers := []*models.Layer{defaultLayer(d.ID)}
	var insertions []*models.Insertion
	err := transform.Resolve(d, doc, s.geo)
	switch {
	case errors.Is(err, models.ErrUnresolvableReferenceSystem):
		log.Warn().Err(err).Msg("extraction deferred")
	case err != nil:
		return err
	default:
		tr, err := transform.Build(d, s.geo)
		if err != nil {
			return err
		}
		res, err := s.extractor.Extract(d, doc, tr)
		if err != nil {
			return err
		}
		layers = append(append([]*models.Layer{}, res.Layers...), res.Blocks...)
		insertions = res.Insertions
	}

	if err := s.store.ReplaceContents(ctx, d.ID, layers, insertions); err != nil {
		return fmt.Errorf("store extraction: %w", err)
	}
	if cad != nil {
		path := s.files.SourcePath(d.ID)
		if err := s.files.SaveFile(d.ID, path, cad); err != nil {
			return err
		}
		d.FilePath = path
	}
	return s.store.UpdateDrawing(ctx, d)
}

func (s *Service) GetDrawing(ctx context.Context, id string) (*models.Drawing, error) {
	return s.store.GetDrawing(ctx, id)
}

func (s *Service) ListDrawings(ctx context.Context, includePrivate bool) ([]*models.Drawing, error) {
	return s.store.ListDrawings(ctx, includePrivate)
}

// Contents возвращает чертёж с его слоями, блоками и вставками.
func (s *Service) Contents(ctx context.Context, id string) (*models.Drawing, []*models.Layer, []*models.Insertion, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.store.GetDrawing(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	layers, err := s.store.ListLayers(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	insertions, err := s.store.ListInsertions(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, layers, insertions, nil
}

// UpdateDrawing применяет p. Смена якоря, точки привязки или поворота
// заново извлекает сохранённый CAD-файл.
func (s *Service) UpdateDrawing(ctx context.Context, id string, p DrawingPatch) (*models.Drawing, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	old, err := s.store.GetDrawing(ctx, id)
	if err != nil {
		return nil, err
	}
	cur := *old
	if p.Title != nil {
		cur.Title = *p.Title
	}
	if p.Intro != nil {
		cur.Intro = *p.Intro
	}
	if p.Anchor != nil {
		a := *p.Anchor
		cur.Anchor = &a
	}
	if p.DesignX != nil {
		cur.DesignX = *p.DesignX
	}
	if p.DesignY != nil {
		cur.DesignY = *p.DesignY
	}
	if p.Rotation != nil {
		cur.Rotation = *p.Rotation
	}
	if p.Private != nil {
		cur.Private = *p.Private
	}

	if !models.NeedsExtraction(old, &cur) {
		if err := s.store.UpdateDrawing(ctx, &cur); err != nil {
			return nil, err
		}
		return &cur, nil
	}
	if cur.FilePath == "" {
		cur.Stale = true
		if err := s.store.UpdateDrawing(ctx, &cur); err != nil {
			return nil, err
		}
		return &cur, nil
	}

	data, err := os.ReadFile(cur.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := s.extract(ctx, &cur, doc, nil); err != nil {
		return nil, err
	}
	return &cur, nil
}

// ReplaceFile сохраняет новый CAD-файл чертежа и извлекает его заново.
func (s *Service) ReplaceFile(ctx context.Context, id string, cad []byte) (*models.Drawing, error) {
	doc, err := parse(cad)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.store.GetDrawing(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.extract(ctx, d, doc, cad); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) DeleteDrawing(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteDrawing(ctx, id); err != nil {
		return err
	}
	return s.files.Remove(id)
}

// Download возвращает путь к актуальному перегенерированному CAD-файлу,
// сначала перегенерируя устаревший чертёж.
func (s *Service) Download(ctx context.Context, id string) (string, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.store.GetDrawing(ctx, id)
	if err != nil {
		return "", err
	}
	path := s.files.RegeneratedPath(id)
	if !d.Stale {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if err := s.regenerate(ctx, d, path); err != nil {
		s.log.Error().Err(err).Str("drawing_id", id).Msg("regeneration failed")
		return "", err
	}
	if err := s.commit(ctx, d, []Event{{Kind: Regenerated, ID: id}}); err != nil {
		return "", err
	}
	return path, nil
}

// Preview рисует слои и вставки чертежа в SVG. Читает только
// сохранённые записи и не меняет stale.
func (s *Service) Preview(ctx context.Context, id string, width float64) ([]byte, error) {
	_, layers, insertions, err := s.Contents(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapper.Preview(layers, insertions, width), nil
}

func (s *Service) regenerate(ctx context.Context, d *models.Drawing, path string) error {
	tr, err := transform.Build(d, s.geo)
	if err != nil {
		return fmt.Errorf("regenerate: %w", err)
	}
	layers, err := s.store.ListLayers(ctx, d.ID)
	if err != nil {
		return err
	}
	insertions, err := s.store.ListInsertions(ctx, d.ID)
	if err != nil {
		return err
	}
	doc, err := s.regen.Regenerate(d, layers, insertions, tr)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return fmt.Errorf("write dxf: %w", err)
	}
	if err := s.files.SaveFile(d.ID, path, buf.Bytes()); err != nil {
		return err
	}
	s.log.Info().Str("drawing_id", d.ID).Int("bytes", buf.Len()).Msg("drawing regenerated")
	return nil
}

// ============================================================
// Layers
// ============================================================

type LayerInput struct {
	Name       string
	Color      string
	Continuous bool
	IsBlock    bool
	Geometry   geometry.Collection
}

type LayerPatch struct {
	Name       *string
	Color      *string
	Continuous *bool
	IsBlock    *bool
	Geometry   *geometry.Collection
}

func normalizeColor(c string) (string, error) {
	if c == "" {
		return models.DefaultLayerColor, nil
	}
	rgb, err := dxf.ParseHex(c)
	if err != nil {
		return "", fmt.Errorf("color %q: %w", c, models.ErrInvalidInput)
	}
	return dxf.FormatHex(rgb), nil
}

func (s *Service) CreateLayer(ctx context.Context, drawingID string, in LayerInput) (*models.Layer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("layer name: %w", models.ErrInvalidInput)
	}
	if name == models.DefaultLayer && in.IsBlock {
		return nil, models.ErrReservedLayer
	}
	color, err := normalizeColor(in.Color)
	if err != nil {
		return nil, err
	}
	if err := in.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	unlock := s.locks.Lock(drawingID)
	defer unlock()
	d, err := s.store.GetDrawing(ctx, drawingID)
	if err != nil {
		return nil, err
	}

	l := &models.Layer{
		DrawingID:  drawingID,
		Name:       name,
		Color:      color,
		Continuous: in.Continuous,
		IsBlock:    in.IsBlock,
		Geometry:   in.Geometry.Append(),
	}
	if err := s.store.CreateLayer(ctx, l); err != nil {
		return nil, err
	}
	return l, s.commit(ctx, d, []Event{{Kind: LayerCreated, ID: l.ID}})
}

// lockLayer блокирует чертёж слоя и перечитывает слой под блокировкой.
func (s *Service) lockLayer(ctx context.Context, id string) (*models.Layer, *models.Drawing, func(), error) {
	l, err := s.store.GetLayer(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	unlock := s.locks.Lock(l.DrawingID)
	if l, err = s.store.GetLayer(ctx, id); err != nil {
		unlock()
		return nil, nil, nil, err
	}
	d, err := s.store.GetDrawing(ctx, l.DrawingID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return l, d, unlock, nil
}

// UpdateLayer применяет p. Переименование, столкнувшееся с другим слоем,
// откатывается, остальные изменения сохраняются. Правка геометрии блока
// пересчитывает все его вставки.
//
// Смена is_block переносит геометрию между системами. Слой становится
// блоком относительно левого нижнего угла своей локальной рамки; слой со
// вставками блоком стать не может. Блок становится слоем с базовой точкой
// в локальном начале координат чертежа, его вставки удаляются. Геометрия,
// пришедшая в том же патче, уже считается заданной в новой системе.
func (s *Service) UpdateLayer(ctx context.Context, id string, p LayerPatch) (*models.Layer, error) {
	l, d, unlock, err := s.lockLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	log := s.log.With().Str("drawing_id", d.ID).Str("layer_id", id).Logger()
	old := *l

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("layer name: %w", models.ErrInvalidInput)
		}
		if old.IsDefault() && name != models.DefaultLayer {
			return nil, models.ErrReservedLayer
		}
		l.Name = name
	}
	if p.IsBlock != nil {
		l.IsBlock = *p.IsBlock
	}
	if l.IsDefault() && l.IsBlock {
		return nil, models.ErrReservedLayer
	}
	if p.Color != nil {
		if l.Color, err = normalizeColor(*p.Color); err != nil {
			return nil, err
		}
	}
	if p.Continuous != nil {
		l.Continuous = *p.Continuous
	}
	if p.Geometry != nil {
		if err := p.Geometry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		l.Geometry = p.Geometry.Append()
	}

	toBlock := l.IsBlock && !old.IsBlock
	toLayer := old.IsBlock && !l.IsBlock
	if toBlock {
		hosted, err := s.hostedInsertions(ctx, d.ID, id)
		if err != nil {
			return nil, err
		}
		if hosted > 0 {
			return nil, fmt.Errorf("layer %q, %d insertions: %w", old.Name, hosted, models.ErrLayerHostsInsertions)
		}
	}

	var insertions []*models.Insertion
	resync := l.IsBlock && old.IsBlock && p.Geometry != nil
	if resync || toLayer {
		if insertions, err = s.store.ListInsertionsByBlock(ctx, id); err != nil {
			return nil, err
		}
	}
	reframe := (toBlock || toLayer) && p.Geometry == nil && !l.Geometry.IsEmpty()
	var tr *transform.Transform
	if reframe || (resync && len(insertions) > 0) {
		if tr, err = transform.Build(d, s.geo); err != nil {
			return nil, err
		}
	}
	switch {
	case reframe && toBlock:
		l.Geometry = toBlockFrame(l.Geometry, tr)
	case reframe && toLayer:
		l.Geometry = fromBlockFrame(l.Geometry, tr)
	}

	err = s.store.UpdateLayer(ctx, l)
	if errors.Is(err, models.ErrDuplicateLayerName) && l.Name != old.Name {
		log.Warn().Err(err).Str("name", l.Name).Msg("rename reverted")
		l.Name = old.Name
		err = s.store.UpdateLayer(ctx, l)
	}
	if err != nil {
		return nil, err
	}
	events := []Event{{Kind: LayerUpdated, ID: id}}

	switch {
	case resync:
		for _, ins := range insertions {
			ins.Geometry = instance.Resync(l.Geometry, ins.Placement, tr)
			if err := s.store.UpdateInsertion(ctx, ins); err != nil {
				return nil, err
			}
			events = append(events, Event{Kind: InsertionResynced, ID: ins.ID})
		}
		log.Debug().Int("insertions", len(insertions)).Msg("block resynced")
	case toLayer:
		for _, ins := range insertions {
			if err := s.store.DeleteInsertion(ctx, ins.ID); err != nil {
				return nil, err
			}
			events = append(events, Event{Kind: InsertionDeleted, ID: ins.ID})
		}
	}
	if toBlock || toLayer {
		log.Info().Bool("is_block", l.IsBlock).Bool("reframed", reframe).Msg("layer kind changed")
	}
	return l, s.commit(ctx, d, events)
}

// hostedInsertions считает вставки, размещённые на слое layerID.
func (s *Service) hostedInsertions(ctx context.Context, drawingID, layerID string) (int, error) {
	all, err := s.store.ListInsertions(ctx, drawingID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ins := range all {
		if ins.LayerID == layerID {
			n++
		}
	}
	return n, nil
}

// toBlockFrame переводит геометрию слоя в систему блоков: локальные
// координаты чертежа со сдвигом левого нижнего угла в ноль, через Origin.
func toBlockFrame(c geometry.Collection, tr *transform.Transform) geometry.Collection {
	local := c.Map(tr.ToLocal)
	base := local.Orb().Bound().Min
	o := transform.Origin()
	return local.Map(func(p orb.Point) orb.Point {
		return o.ToGeo(orb.Point{p[0] - base[0], p[1] - base[1]})
	})
}

// fromBlockFrame кладёт геометрию блока в чертёж базовой точкой в локальный
// ноль.
func fromBlockFrame(c geometry.Collection, tr *transform.Transform) geometry.Collection {
	return c.Map(transform.Origin().ToLocal).Map(tr.ToGeo)
}

func (s *Service) DeleteLayer(ctx context.Context, id string) error {
	l, d, unlock, err := s.lockLayer(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if l.IsDefault() && !l.IsBlock {
		return models.ErrReservedLayer
	}
	if err := s.store.DeleteLayer(ctx, id); err != nil {
		return err
	}
	return s.commit(ctx, d, []Event{{Kind: LayerDeleted, ID: id}})
}

// ============================================================
// Insertions
// ============================================================

type InsertionInput struct {
	BlockID string
	LayerID string
	models.Placement
}

type InsertionPatch struct {
	BlockID  *string
	LayerID  *string
	Point    *orb.Point
	Rotation *float64
	XScale   *float64
	YScale   *float64
}

// references проверяет, что blockID - блок, а layerID - обычный слой d.
func (s *Service) references(ctx context.Context, d *models.Drawing, blockID, layerID string) (*models.Layer, error) {
	block, err := s.store.GetLayer(ctx, blockID)
	if err != nil || !block.IsBlock || block.DrawingID != d.ID {
		return nil, fmt.Errorf("block %s: %w", blockID, models.ErrDanglingBlockReference)
	}
	layer, err := s.store.GetLayer(ctx, layerID)
	if err != nil || layer.IsBlock || layer.DrawingID != d.ID {
		return nil, fmt.Errorf("layer %s: %w", layerID, models.ErrDanglingBlockReference)
	}
	return block, nil
}

func (s *Service) CreateInsertion(ctx context.Context, drawingID string, in InsertionInput) (*models.Insertion, error) {
	unlock := s.locks.Lock(drawingID)
	defer unlock()

	d, err := s.store.GetDrawing(ctx, drawingID)
	if err != nil {
		return nil, err
	}
	block, err := s.references(ctx, d, in.BlockID, in.LayerID)
	if err != nil {
		return nil, err
	}
	tr, err := transform.Build(d, s.geo)
	if err != nil {
		return nil, err
	}

	p := in.Placement.Normalized()
	ins := &models.Insertion{
		DrawingID: drawingID,
		BlockID:   block.ID,
		LayerID:   in.LayerID,
		Placement: p,
		Geometry:  instance.Resync(block.Geometry, p, tr),
	}
	if err := s.store.CreateInsertion(ctx, ins); err != nil {
		return nil, err
	}
	return ins, s.commit(ctx, d, []Event{{Kind: InsertionCreated, ID: ins.ID}})
}

func (s *Service) lockInsertion(ctx context.Context, id string) (*models.Insertion, *models.Drawing, func(), error) {
	ins, err := s.store.GetInsertion(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	unlock := s.locks.Lock(ins.DrawingID)
	if ins, err = s.store.GetInsertion(ctx, id); err != nil {
		unlock()
		return nil, nil, nil, err
	}
	d, err := s.store.GetDrawing(ctx, ins.DrawingID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return ins, d, unlock, nil
}

// UpdateInsertion применяет p и пересчитывает кэш геометрии при смене
// размещения или блока.
func (s *Service) UpdateInsertion(ctx context.Context, id string, p InsertionPatch) (*models.Insertion, error) {
	ins, d, unlock, err := s.lockInsertion(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	old := *ins
	if p.BlockID != nil {
		ins.BlockID = *p.BlockID
	}
	if p.LayerID != nil {
		ins.LayerID = *p.LayerID
	}
	if p.Point != nil {
		ins.Point = *p.Point
	}
	if p.Rotation != nil {
		ins.Rotation = *p.Rotation
	}
	if p.XScale != nil {
		ins.XScale = *p.XScale
	}
	if p.YScale != nil {
		ins.YScale = *p.YScale
	}
	ins.Placement = ins.Placement.Normalized()

	block, err := s.references(ctx, d, ins.BlockID, ins.LayerID)
	if err != nil {
		return nil, err
	}
	events := []Event{{Kind: InsertionUpdated, ID: id}}
	if instance.Changed(old.Placement, ins.Placement) || old.BlockID != ins.BlockID {
		tr, err := transform.Build(d, s.geo)
		if err != nil {
			return nil, err
		}
		ins.Geometry = instance.Resync(block.Geometry, ins.Placement, tr)
		events = append(events, Event{Kind: InsertionResynced, ID: id})
	}
	if err := s.store.UpdateInsertion(ctx, ins); err != nil {
		return nil, err
	}
	return ins, s.commit(ctx, d, events)
}

func (s *Service) DeleteInsertion(ctx context.Context, id string) error {
	_, d, unlock, err := s.lockInsertion(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.store.DeleteInsertion(ctx, id); err != nil {
		return err
	}
	return s.commit(ctx, d, []Event{{Kind: InsertionDeleted, ID: id}})
}

// Explode переносит кэш геометрии вставки в её слой и удаляет вставку.
// Возвращает обновлённый слой.
func (s *Service) Explode(ctx context.Context, id string) (*models.Layer, error) {
	ins, d, unlock, err := s.lockInsertion(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	layer, err := s.store.GetLayer(ctx, ins.LayerID)
	if err != nil {
		return nil, err
	}
	layer.Geometry = layer.Geometry.Merge(ins.Geometry)
	if err := s.store.UpdateLayer(ctx, layer); err != nil {
		return nil, err
	}
	if err := s.store.DeleteInsertion(ctx, id); err != nil {
		return nil, err
	}
	return layer, s.commit(ctx, d, []Event{{Kind: InsertionExploded, ID: id}})
}
