package render

import (
	"errors"
	"math"
	"strings"

	"github.com/NERVsystems/osmreach/pkg/geo"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// polylinePrecision is the Polyline5 scale: five decimal places
const polylinePrecision = 1e5

var errTruncatedPolyline = errors.New("polyline ends inside a value")

// Polyline encodes a road's geometry in Google's encoded polyline format
func Polyline(store *roadnet.Store, r *roadnet.Road) string {
	nodes := store.Path(r)
	var sb strings.Builder
	sb.Grow(len(nodes) * 8)

	var prevLat, prevLon int
	for _, n := range nodes {
		lat := int(math.Round(n.Lat * polylinePrecision))
		lon := int(math.Round(n.Lon * polylinePrecision))
		writeDelta(&sb, lat-prevLat)
		writeDelta(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

// DecodePolyline reverses Polyline
func DecodePolyline(s string) ([]geo.Location, error) {
	var (
		locs     []geo.Location
		lat, lon int
	)
	for i := 0; i < len(s); {
		dlat, next, err := readDelta(s, i)
		if err != nil {
			return nil, err
		}
		dlon, next, err := readDelta(s, next)
		if err != nil {
			return nil, err
		}
		i = next
		lat += dlat
		lon += dlon
		locs = append(locs, geo.Location{
			Latitude:  float64(lat) / polylinePrecision,
			Longitude: float64(lon) / polylinePrecision,
		})
	}
	return locs, nil
}

func writeDelta(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte(0x20|(u&0x1f)) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

func readDelta(s string, i int) (int, int, error) {
	var u, shift int
	for {
		if i >= len(s) {
			return 0, i, errTruncatedPolyline
		}
		b := int(s[i]) - 63
		i++
		u |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if u&1 != 0 {
		return ^(u >> 1), i, nil
	}
	return u >> 1, i, nil
}
