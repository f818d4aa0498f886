package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ncruces/go-sqlite3"

	"geocad/internal/geocad/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init применяет миграции по порядку.
func (r *Repository) Init(ctx context.Context) error {
	if err := r.runMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// ============================================================
// Drawings
// ============================================================

const drawingColumns = `id, title, intro, anchor_lon, anchor_lat, design_x, design_y,
        rotation, epsg, stale, private, file_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row rowScanner) (*models.Drawing, error) {
	var (
		d        models.Drawing
		lon, lat sql.NullFloat64
	)
	err := row.Scan(&d.ID, &d.Title, &d.Intro, &lon, &lat, &d.DesignX, &d.DesignY,
		&d.Rotation, &d.EPSG, &d.Stale, &d.Private, &d.FilePath, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lon.Valid && lat.Valid {
		d.Anchor = &models.LonLat{Lon: lon.Float64, Lat: lat.Float64}
	}
	return &d, nil
}

func anchorArgs(d *models.Drawing) (any, any) {
	if d.Anchor == nil {
		return nil, nil
	}
	return d.Anchor.Lon, d.Anchor.Lat
}

func (r *Repository) CreateDrawing(ctx context.Context, d *models.Drawing) error {
	ensureID(&d.ID)
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	lon, lat := anchorArgs(d)

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO drawings (`+drawingColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, d.ID, d.Title, d.Intro, lon, lat, d.DesignX, d.DesignY,
		d.Rotation, d.EPSG, d.Stale, d.Private, d.FilePath, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert drawing: %w", err)
	}
	return nil
}

func (r *Repository) GetDrawing(ctx context.Context, id string) (*models.Drawing, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+drawingColumns+` FROM drawings WHERE id = ?`, id)
	d, err := scanDrawing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drawing %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (r *Repository) ListDrawings(ctx context.Context, includePrivate bool) ([]*models.Drawing, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+drawingColumns+`
        FROM drawings
        WHERE ? OR private = 0
        ORDER BY created_at, id
    `, includePrivate)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()

	var out []*models.Drawing
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDrawing(ctx context.Context, d *models.Drawing) error {
	d.UpdatedAt = now()
	lon, lat := anchorArgs(d)
	res, err := r.db.ExecContext(ctx, `
        UPDATE drawings
        SET title = ?, intro = ?, anchor_lon = ?, anchor_lat = ?, design_x = ?, design_y = ?,
            rotation = ?, epsg = ?, stale = ?, private = ?, file_path = ?, updated_at = ?
        WHERE id = ?
    `, d.Title, d.Intro, lon, lat, d.DesignX, d.DesignY,
		d.Rotation, d.EPSG, d.Stale, d.Private, d.FilePath, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("update drawing: %w", err)
	}
	return affected(res, "drawing", d.ID)
}

func (r *Repository) SetStale(ctx context.Context, id string, stale bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE drawings SET stale = ? WHERE id = ?`, stale, id)
	if err != nil {
		return fmt.Errorf("set stale: %w", err)
	}
	return affected(res, "drawing", id)
}

func (r *Repository) DeleteDrawing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete drawing: %w", err)
	}
	return affected(res, "drawing", id)
}

func (r *Repository) ReplaceContents(ctx context.Context, drawingID string, layers []*models.Layer, insertions []*models.Insertion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM layers WHERE drawing_id = ?`, drawingID); err != nil {
		return fmt.Errorf("clear layers: %w", err)
	}
	for _, l := range layers {
		l.DrawingID = drawingID
		if err := insertLayer(ctx, tx, l); err != nil {
			return err
		}
	}
	for _, i := range insertions {
		i.DrawingID = drawingID
		if err := insertInsertion(ctx, tx, i); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ============================================================
// Layers
// ============================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const layerColumns = `id, drawing_id, name, color, continuous, is_block, geometry`

func scanLayer(row rowScanner) (*models.Layer, error) {
	var l models.Layer
	if err := row.Scan(&l.ID, &l.DrawingID, &l.Name, &l.Color, &l.Continuous, &l.IsBlock, &l.Geometry); err != nil {
		return nil, err
	}
	return &l, nil
}

func insertLayer(ctx context.Context, db execer, l *models.Layer) error {
	ensureID(&l.ID)
	_, err := db.ExecContext(ctx, `
        INSERT INTO layers (`+layerColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, l.ID, l.DrawingID, l.Name, l.Color, l.Continuous, l.IsBlock, l.Geometry)
	if err != nil {
		return layerError("insert layer", err)
	}
	return nil
}

func layerError(op string, err error) error {
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicateLayerName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Repository) CreateLayer(ctx context.Context, l *models.Layer) error {
	return insertLayer(ctx, r.db, l)
}

func (r *Repository) GetLayer(ctx context.Context, id string) (*models.Layer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+layerColumns+` FROM layers WHERE id = ?`, id)
	l, err := scanLayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("layer %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return l, nil
}

// ListLayers возвращает слои и блоки чертежа, обычные слои первыми.
func (r *Repository) ListLayers(ctx context.Context, drawingID string) ([]*models.Layer, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+layerColumns+`
        FROM layers
        WHERE drawing_id = ?
        ORDER BY is_block, rowid
    `, drawingID)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var out []*models.Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateLayer(ctx context.Context, l *models.Layer) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE layers
        SET name = ?, color = ?, continuous = ?, is_block = ?, geometry = ?
        WHERE id = ?
    `, l.Name, l.Color, l.Continuous, l.IsBlock, l.Geometry, l.ID)
	if err != nil {
		return layerError("update layer", err)
	}
	return affected(res, "layer", l.ID)
}

func (r *Repository) DeleteLayer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete layer: %w", err)
	}
	return affected(res, "layer", id)
}

// ============================================================
// Insertions
// ============================================================

const insertionColumns = `id, drawing_id, block_id, layer_id, lon, lat, rotation, x_scale, y_scale, geometry`

func scanInsertion(row rowScanner) (*models.Insertion, error) {
	var i models.Insertion
	err := row.Scan(&i.ID, &i.DrawingID, &i.BlockID, &i.LayerID, &i.Point[0], &i.Point[1],
		&i.Rotation, &i.XScale, &i.YScale, &i.Geometry)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func insertInsertion(ctx context.Context, db execer, i *models.Insertion) error {
	ensureID(&i.ID)
	_, err := db.ExecContext(ctx, `
        INSERT INTO insertions (`+insertionColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, i.ID, i.DrawingID, i.BlockID, i.LayerID, i.Point[0], i.Point[1],
		i.Rotation, i.XScale, i.YScale, i.Geometry)
	if err != nil {
		return fmt.Errorf("insert insertion: %w", err)
	}
	return nil
}

func (r *Repository) CreateInsertion(ctx context.Context, i *models.Insertion) error {
	return insertInsertion(ctx, r.db, i)
}

func (r *Repository) GetInsertion(ctx context.Context, id string) (*models.Insertion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+insertionColumns+` FROM insertions WHERE id = ?`, id)
	i, err := scanInsertion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("insertion %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return i, nil
}

func (r *Repository) ListInsertions(ctx context.Context, drawingID string) ([]*models.Insertion, error) {
	return r.queryInsertions(ctx, `WHERE drawing_id = ?`, drawingID)
}

func (r *Repository) ListInsertionsByBlock(ctx context.Context, blockID string) ([]*models.Insertion, error) {
	return r.queryInsertions(ctx, `WHERE block_id = ?`, blockID)
}

func (r *Repository) queryInsertions(ctx context.Context, where string, arg string) ([]*models.Insertion, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+insertionColumns+` FROM insertions `+where+` ORDER BY rowid`, arg)
	if err != nil {
		return nil, fmt.Errorf("list insertions: %w", err)
	}
	defer rows.Close()

	var out []*models.Insertion
	for rows.Next() {
		i, err := scanInsertion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateInsertion(ctx context.Context, i *models.Insertion) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE insertions
        SET block_id = ?, layer_id = ?, lon = ?, lat = ?, rotation = ?, x_scale = ?, y_scale = ?, geometry = ?
        WHERE id = ?
    `, i.BlockID, i.LayerID, i.Point[0], i.Point[1], i.Rotation, i.XScale, i.YScale, i.Geometry, i.ID)
	if err != nil {
		return fmt.Errorf("update insertion: %w", err)
	}
	return affected(res, "insertion", i.ID)
}

func (r *Repository) DeleteInsertion(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM insertions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete insertion: %w", err)
	}
	return affected(res, "insertion", id)
}

func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context) error {
	files, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, f := range files {
		data, err := migrations.ReadFile("migrations/" + f.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f.Name(), err)
		}
		if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name(), err)
		}
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути с включёнными внешними ключами.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
