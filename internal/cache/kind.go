package cache

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// File extensions of the two artifact kinds.
const (
	TableExt  = ".parquet"
	ObjectExt = ".gob.zst"
)

// Kind describes how an artifact of type T is written and read.
// The only kinds are the ones returned by Table and Object.
type Kind[T any] struct {
	encode func(w io.Writer, v T) error
	decode func(r io.ReaderAt, size int64) (T, error)
	ext    string
}

// Ext returns the file extension used for artifacts of this kind.
func (k Kind[T]) Ext() string {
	return k.ext
}

// Table is the columnar kind: rows of R stored as zstd-compressed parquet.
func Table[R any]() Kind[[]R] {
	return Kind[[]R]{
		ext: TableExt,
		encode: func(w io.Writer, rows []R) error {
			return parquet.Write(w, rows, parquet.Compression(&parquet.Zstd))
		},
		decode: func(r io.ReaderAt, size int64) ([]R, error) {
			return parquet.Read[R](r, size)
		},
	}
}

// Object is the structured kind: any gob-encodable value inside a zstd frame.
func Object[T any]() Kind[T] {
	return Kind[T]{
		ext: ObjectExt,
		encode: func(w io.Writer, v T) error {
			enc, err := zstd.NewWriter(w)
			if err != nil {
				return fmt.Errorf("create zstd writer: %w", err)
			}
			if err := gob.NewEncoder(enc).Encode(v); err != nil {
				_ = enc.Close()
				return fmt.Errorf("gob encode: %w", err)
			}
			return enc.Close()
		},
		decode: func(r io.ReaderAt, size int64) (T, error) {
			var v T
			dec, err := zstd.NewReader(io.NewSectionReader(r, 0, size))
			if err != nil {
				return v, fmt.Errorf("create zstd reader: %w", err)
			}
			defer dec.Close()
			if err := gob.NewDecoder(dec).Decode(&v); err != nil {
				return v, fmt.Errorf("gob decode: %w", err)
			}
			return v, nil
		},
	}
}
