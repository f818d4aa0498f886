package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"geocad/internal/geocad/models"
)

// ============================================================
// In-memory Store
// ============================================================

type memoryState struct {
	drawings   map[string]models.Drawing
	layers     map[string]models.Layer
	insertions map[string]models.Insertion
	seq        map[string]int // порядок вставки для стабильных списков
	next       int
}

// Memory - Store в памяти процесса. Записи копируются на входе и выходе,
// вызывающий код не делит состояние с хранилищем.
type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		drawings:   map[string]models.Drawing{},
		layers:     map[string]models.Layer{},
		insertions: map[string]models.Insertion{},
		seq:        map[string]int{},
	}}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) touch(id string) {
	if _, ok := m.state.seq[id]; !ok {
		m.state.next++
		m.state.seq[id] = m.state.next
	}
}

func cloneDrawing(d models.Drawing) *models.Drawing {
	if d.Anchor != nil {
		a := *d.Anchor
		d.Anchor = &a
	}
	return &d
}

func cloneLayer(l models.Layer) *models.Layer {
	l.Geometry = l.Geometry.Append()
	return &l
}

func cloneInsertion(i models.Insertion) *models.Insertion {
	i.Geometry = i.Geometry.Append()
	return &i
}

// ============================================================
// Drawings
// ============================================================

func (m *Memory) CreateDrawing(_ context.Context, d *models.Drawing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&d.ID)
	if _, ok := m.state.drawings[d.ID]; ok {
		return fmt.Errorf("insert drawing: duplicate id %s", d.ID)
	}
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	m.state.drawings[d.ID] = *cloneDrawing(*d)
	m.touch(d.ID)
	return nil
}

func (m *Memory) GetDrawing(_ context.Context, id string) (*models.Drawing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.drawings[id]
	if !ok {
		return nil, fmt.Errorf("drawing %s: %w", id, models.ErrNotFound)
	}
	return cloneDrawing(d), nil
}

func (m *Memory) ListDrawings(_ context.Context, includePrivate bool) ([]*models.Drawing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Drawing
	for _, d := range m.state.drawings {
		if d.Private && !includePrivate {
			continue
		}
		out = append(out, cloneDrawing(d))
	}
	sortBySeq(m, out)
	return out, nil
}

func (m *Memory) UpdateDrawing(_ context.Context, d *models.Drawing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.state.drawings[d.ID]
	if !ok {
		return fmt.Errorf("drawing %s: %w", d.ID, models.ErrNotFound)
	}
	d.CreatedAt = old.CreatedAt
	d.UpdatedAt = now()
	m.state.drawings[d.ID] = *cloneDrawing(*d)
	return nil
}

func (m *Memory) SetStale(_ context.Context, id string, stale bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.drawings[id]
	if !ok {
		return fmt.Errorf("drawing %s: %w", id, models.ErrNotFound)
	}
	d.Stale = stale
	m.state.drawings[id] = d
	return nil
}

func (m *Memory) DeleteDrawing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.drawings[id]; !ok {
		return fmt.Errorf("drawing %s: %w", id, models.ErrNotFound)
	}
	delete(m.state.drawings, id)
	for lid, l := range m.state.layers {
		if l.DrawingID == id {
			m.deleteLayerLocked(lid)
		}
	}
	return nil
}

func (m *Memory) ReplaceContents(_ context.Context, drawingID string, layers []*models.Layer, insertions []*models.Insertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// сначала проверка, чтобы при ошибке осталось старое содержимое
	seen := map[string]bool{}
	for _, l := range layers {
		key := layerKey(drawingID, l)
		if seen[key] {
			return fmt.Errorf("insert layer: %w", models.ErrDuplicateLayerName)
		}
		seen[key] = true
	}

	for lid, l := range m.state.layers {
		if l.DrawingID == drawingID {
			m.deleteLayerLocked(lid)
		}
	}
	for _, l := range layers {
		l.DrawingID = drawingID
		ensureID(&l.ID)
		m.state.layers[l.ID] = *cloneLayer(*l)
		m.touch(l.ID)
	}
	for _, i := range insertions {
		i.DrawingID = drawingID
		ensureID(&i.ID)
		m.state.insertions[i.ID] = *cloneInsertion(*i)
		m.touch(i.ID)
	}
	return nil
}

// ============================================================
// Layers
// ============================================================

func layerKey(drawingID string, l *models.Layer) string {
	return fmt.Sprintf("%s\x00%s\x00%t", drawingID, l.Name, l.IsBlock)
}

func (m *Memory) nameTaken(l *models.Layer) bool {
	key := layerKey(l.DrawingID, l)
	for id, other := range m.state.layers {
		if id != l.ID && layerKey(other.DrawingID, &other) == key {
			return true
		}
	}
	return false
}

func (m *Memory) CreateLayer(_ context.Context, l *models.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.drawings[l.DrawingID]; !ok {
		return fmt.Errorf("insert layer: drawing %s: %w", l.DrawingID, models.ErrNotFound)
	}
	ensureID(&l.ID)
	if m.nameTaken(l) {
		return fmt.Errorf("insert layer: %w", models.ErrDuplicateLayerName)
	}
	m.state.layers[l.ID] = *cloneLayer(*l)
	m.touch(l.ID)
	return nil
}

func (m *Memory) GetLayer(_ context.Context, id string) (*models.Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.state.layers[id]
	if !ok {
		return nil, fmt.Errorf("layer %s: %w", id, models.ErrNotFound)
	}
	return cloneLayer(l), nil
}

func (m *Memory) ListLayers(_ context.Context, drawingID string) ([]*models.Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Layer
	for _, l := range m.state.layers {
		if l.DrawingID == drawingID {
			out = append(out, cloneLayer(l))
		}
	}
	sortBySeq(m, out)
	sort.SliceStable(out, func(i, j int) bool { return !out[i].IsBlock && out[j].IsBlock })
	return out, nil
}

func (m *Memory) UpdateLayer(_ context.Context, l *models.Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.state.layers[l.ID]
	if !ok {
		return fmt.Errorf("layer %s: %w", l.ID, models.ErrNotFound)
	}
	l.DrawingID = old.DrawingID
	if m.nameTaken(l) {
		return fmt.Errorf("update layer: %w", models.ErrDuplicateLayerName)
	}
	m.state.layers[l.ID] = *cloneLayer(*l)
	return nil
}

func (m *Memory) DeleteLayer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.layers[id]; !ok {
		return fmt.Errorf("layer %s: %w", id, models.ErrNotFound)
	}
	m.deleteLayerLocked(id)
	return nil
}

func (m *Memory) deleteLayerLocked(id string) {
	delete(m.state.layers, id)
	delete(m.state.seq, id)
	for iid, i := range m.state.insertions {
		if i.LayerID == id || i.BlockID == id {
			delete(m.state.insertions, iid)
			delete(m.state.seq, iid)
		}
	}
}

// ============================================================
// Insertions
// ============================================================

func (m *Memory) CreateInsertion(_ context.Context, i *models.Insertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRefs(i); err != nil {
		return fmt.Errorf("insert insertion: %w", err)
	}
	ensureID(&i.ID)
	m.state.insertions[i.ID] = *cloneInsertion(*i)
	m.touch(i.ID)
	return nil
}

func (m *Memory) checkRefs(i *models.Insertion) error {
	for _, id := range []string{i.LayerID, i.BlockID} {
		if _, ok := m.state.layers[id]; !ok {
			return fmt.Errorf("layer %s: %w", id, models.ErrNotFound)
		}
	}
	return nil
}

func (m *Memory) GetInsertion(_ context.Context, id string) (*models.Insertion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.state.insertions[id]
	if !ok {
		return nil, fmt.Errorf("insertion %s: %w", id, models.ErrNotFound)
	}
	return cloneInsertion(i), nil
}

func (m *Memory) ListInsertions(_ context.Context, drawingID string) ([]*models.Insertion, error) {
	return m.filterInsertions(func(i models.Insertion) bool { return i.DrawingID == drawingID }), nil
}

func (m *Memory) ListInsertionsByBlock(_ context.Context, blockID string) ([]*models.Insertion, error) {
	return m.filterInsertions(func(i models.Insertion) bool { return i.BlockID == blockID }), nil
}

func (m *Memory) filterInsertions(keep func(models.Insertion) bool) []*models.Insertion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Insertion
	for _, i := range m.state.insertions {
		if keep(i) {
			out = append(out, cloneInsertion(i))
		}
	}
	sortBySeq(m, out)
	return out
}

func (m *Memory) UpdateInsertion(_ context.Context, i *models.Insertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.state.insertions[i.ID]
	if !ok {
		return fmt.Errorf("insertion %s: %w", i.ID, models.ErrNotFound)
	}
	if err := m.checkRefs(i); err != nil {
		return fmt.Errorf("update insertion: %w", err)
	}
	i.DrawingID = old.DrawingID
	m.state.insertions[i.ID] = *cloneInsertion(*i)
	return nil
}

func (m *Memory) DeleteInsertion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.insertions[id]; !ok {
		return fmt.Errorf("insertion %s: %w", id, models.ErrNotFound)
	}
	delete(m.state.insertions, id)
	delete(m.state.seq, id)
	return nil
}

type record interface {
	*models.Drawing | *models.Layer | *models.Insertion
}

func recordID[T record](r T) string {
	switch r := any(r).(type) {
	case *models.Drawing:
		return r.ID
	case *models.Layer:
		return r.ID
	case *models.Insertion:
		return r.ID
	}
	return ""
}

// sortBySeq упорядочивает список по порядку создания.
func sortBySeq[T record](m *Memory, items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return m.state.seq[recordID(items[i])] < m.state.seq[recordID(items[j])]
	})
}
