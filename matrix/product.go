package matrix

import "fmt"

// Shape is a rows x columns pair.
type Shape struct {
	Rows    int `json:"rows" yaml:"rows"`
	Columns int `json:"columns" yaml:"columns"`
}

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Columns) }

// Len is the number of entries.
func (s Shape) Len() int { return s.Rows * s.Columns }

// BufferLength is the byte size of a buffer holding the entries as f32.
func (s Shape) BufferLength() uint64 { return uint64(s.Len()) * bytesPerEntry }

// Product is a host-owned result read back from the device.
type Product struct {
	Shape
	Data []float32
}

// At returns element (r, c).
func (p Product) At(r, c int) float32 { return p.Data[r*p.Columns+c] }

// View returns p as a Matrix borrowing p.Data.
func (p Product) View() Matrix {
	return Matrix{rows: p.Rows, columns: p.Columns, entries: p.Data}
}
