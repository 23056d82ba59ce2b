package geo

import "math"

// RectSpec parametrizes a rounded rectangle in degrees.
type RectSpec struct {
	Center         Point
	Width          float64
	Height         float64
	Radius         float64
	CornerSegments int
}

// OnlineRegion is where the map draws transactions without a location.
var OnlineRegion = RectSpec{
	Center:         Point{Lat: 27.5, Lon: -66.0},
	Width:          8,
	Height:         5,
	Radius:         1.2,
	CornerSegments: 8,
}

// RoundedRectangle returns a closed ring (first point repeated last) tracing
// the rectangle counter-clockwise, starting at the top-right corner arc.
func RoundedRectangle(spec RectSpec) []Point {
	segs := max(spec.CornerSegments, 1)
	r := math.Min(spec.Radius, math.Min(spec.Width, spec.Height)/2)
	r = math.Max(r, 0)
	hw := spec.Width/2 - r
	hh := spec.Height/2 - r

	corners := []struct {
		dx, dy, start float64
	}{
		{hw, hh, 0},
		{-hw, hh, math.Pi / 2},
		{-hw, -hh, math.Pi},
		{hw, -hh, 3 * math.Pi / 2},
	}

	ring := make([]Point, 0, 4*(segs+1)+1)
	for _, c := range corners {
		for i := 0; i <= segs; i++ {
			a := c.start + (math.Pi/2)*float64(i)/float64(segs)
			ring = append(ring, Point{
				Lat: spec.Center.Lat + c.dy + r*math.Sin(a),
				Lon: spec.Center.Lon + c.dx + r*math.Cos(a),
			})
		}
	}
	ring = append(ring, ring[0])
	return ring
}
