package models

import "errors"

// ============================================================
// Errors
// ============================================================

var (
	// ErrUnreadableDocument фатальна: ничего не записывается.
	ErrUnreadableDocument = errors.New("unreadable CAD document")
	// ErrUnresolvableReferenceSystem откладывает извлечение, пока не появится
	// якорь или встроенная GEODATA.
	ErrUnresolvableReferenceSystem = errors.New("reference system cannot be resolved")
	ErrDanglingBlockReference      = errors.New("dangling block reference")
	ErrInvalidPolygon              = errors.New("degenerate geometry")
	ErrDuplicateLayerName          = errors.New("duplicate layer name")
	ErrReservedLayer               = errors.New("layer \"0\" cannot be renamed or turned into a block")
	ErrLayerHostsInsertions        = errors.New("layer hosts block insertions")
	ErrNotFound                    = errors.New("not found")
	ErrInvalidInput                = errors.New("invalid input")
)
