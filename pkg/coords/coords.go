// Package coords parses free-form query points into decimal degrees.
//
// Accepted formats:
//   - Decimal degrees, latitude first: "48.8566, 2.3522" or "48.8566 2.3522"
//   - Degrees minutes seconds: 48°51'24"N 2°21'8"E
//   - MGRS: "31UDQ5248311380"
package coords

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"

	"github.com/NERVsystems/osmreach/pkg/geo"
)

// Format identifies the notation a point was written in
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	default:
		return "unknown"
	}
}

var (
	// zone, latitude band, 100km square, even count of digits
	mgrsRegex = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	dmsRegex = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	decimalRegex = regexp.MustCompile(`^(-?\d+(?:\.\d*)?)[,\s]+(-?\d+(?:\.\d*)?)$`)
)

// Parse detects the notation of input and converts it to a Location
func Parse(input string) (geo.Location, Format, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return geo.Location{}, FormatUnknown, fmt.Errorf("empty coordinate string")
	}

	compact := strings.ToUpper(strings.ReplaceAll(input, " ", ""))
	switch {
	case mgrsRegex.MatchString(compact):
		loc, err := parseMGRS(compact)
		return loc, FormatMGRS, err
	case dmsRegex.MatchString(input):
		loc, err := parseDMS(input)
		return loc, FormatDMS, err
	case decimalRegex.MatchString(input):
		loc, err := parseDecimal(input)
		return loc, FormatDecimal, err
	}

	return geo.Location{}, FormatUnknown, fmt.Errorf("unrecognized coordinate format: %q", input)
}

func parseMGRS(input string) (geo.Location, error) {
	digits := mgrsRegex.FindStringSubmatch(input)[4]
	if len(digits)%2 != 0 {
		return geo.Location{}, fmt.Errorf("MGRS numeric part must have an even number of digits: %q", input)
	}

	lat, lon, err := mgrs.MGRSToLatLng(input)
	if err != nil {
		return geo.Location{}, fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return checkRange(lat, lon)
}

func parseDMS(input string) (geo.Location, error) {
	m := dmsRegex.FindStringSubmatch(input)

	lat, err := dmsToDecimal(m[1], m[2], m[3], 90)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid latitude in %q: %w", input, err)
	}
	lon, err := dmsToDecimal(m[5], m[6], m[7], 180)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid longitude in %q: %w", input, err)
	}

	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lon = -lon
	}
	return checkRange(lat, lon)
}

func dmsToDecimal(d, m, s string, maxDeg float64) (float64, error) {
	deg, _ := strconv.ParseFloat(d, 64)
	min, _ := strconv.ParseFloat(m, 64)
	sec, _ := strconv.ParseFloat(s, 64)
	if deg > maxDeg || min >= 60 || sec >= 60 {
		return 0, fmt.Errorf("component out of range")
	}
	return deg + min/60 + sec/3600, nil
}

func parseDecimal(input string) (geo.Location, error) {
	m := decimalRegex.FindStringSubmatch(input)
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid latitude: %s", m[1])
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid longitude: %s", m[2])
	}
	return checkRange(lat, lon)
}

func checkRange(lat, lon float64) (geo.Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geo.Location{}, fmt.Errorf("coordinates out of range: lat=%f, lon=%f", lat, lon)
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}
