package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lon float64
}

// Geocoder resolves a postal code to a centroid.
type Geocoder interface {
	Locate(zip string) (Point, bool)
}

// ZipTable is an in-memory zip -> centroid lookup.
type ZipTable map[string]Point

// Locate implements Geocoder.
func (z ZipTable) Locate(zip string) (Point, bool) {
	p, ok := z[zip]
	return p, ok
}

// PadZip normalizes a postal code to five digits. Values exported as floats
// ("2138.0") lose their trailing fraction. ok is false for empty or
// non-numeric codes.
func PadZip(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return "", false
	}
	return fmt.Sprintf("%05d", n), true
}

// LoadZipTable reads a "zip,latitude,longitude" CSV. A missing file yields an
// empty table, so every transaction is left without coordinates.
func LoadZipTable(path string) (ZipTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ZipTable{}, nil
		}
		return nil, fmt.Errorf("open zip centroids: %w", err)
	}
	defer f.Close()
	return ReadZipTable(f)
}

// ReadZipTable parses zip centroid CSV data with a header row.
func ReadZipTable(r io.Reader) (ZipTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return ZipTable{}, nil
		}
		return nil, fmt.Errorf("read zip centroid header: %w", err)
	}

	out := make(ZipTable)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read zip centroids: %w", err)
		}
		if len(rec) < 3 {
			continue
		}
		zip, ok := PadZip(rec[0])
		if !ok {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		out[zip] = Point{Lat: lat, Lon: lon}
	}
	return out, nil
}
