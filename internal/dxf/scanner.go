package dxf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ============================================================
// Group code scanner
// ============================================================

// ErrBinary возвращается для бинарного DXF, он не поддерживается.
var ErrBinary = errors.New("dxf: binary DXF is not supported")

const binarySentinel = "AutoCAD Binary DXF"

// Tag - пара (групповой код, значение).
type Tag struct {
	Code  int
	Value string
}

func (t Tag) AsString() string {
	return t.Value
}

func (t Tag) AsFloat() float64 {
	v, err := strconv.ParseFloat(t.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

func (t Tag) AsInt() int {
	v, err := strconv.Atoi(t.Value)
	if err != nil {
		// некоторые программы пишут целые как дробные
		return int(t.AsFloat())
	}
	return v
}

// Scanner читает поток ASCII DXF как последовательность тегов.
type Scanner struct {
	lines   *bufio.Scanner
	LastTag Tag
	line    int
	pushed  bool
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Scanner{lines: lines}
}

// Next переходит к следующему тегу. Возвращает false в конце ввода или при ошибке.
func (s *Scanner) Next() bool {
	if s.pushed {
		s.pushed = false
		return true
	}
	if s.err != nil {
		return false
	}

	code, ok := s.readLine()
	if !ok {
		return false
	}
	if s.line == 1 && strings.HasPrefix(code, binarySentinel) {
		s.err = ErrBinary
		return false
	}
	value, ok := s.readLine()
	if !ok {
		if s.err == nil {
			s.err = fmt.Errorf("dxf: line %d: missing value for group code %q", s.line, code)
		}
		return false
	}

	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		s.err = fmt.Errorf("dxf: line %d: invalid group code %q", s.line-1, code)
		return false
	}

	s.LastTag = Tag{Code: n, Value: strings.TrimSpace(value)}
	return true
}

// Unread заставляет следующий Next снова вернуть LastTag.
func (s *Scanner) Unread() {
	s.pushed = true
}

func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) readLine() (string, bool) {
	if !s.lines.Scan() {
		if err := s.lines.Err(); err != nil {
			s.err = err
		}
		return "", false
	}
	s.line++
	return strings.TrimRight(s.lines.Text(), "\r"), true
}
