package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// RawPoint is a point as received from a client. Decoding never fails so
// that malformed input reaches validation and is reported in rule order.
type RawPoint struct {
	X float64
	Y float64

	wellFormed bool
}

// Raw wraps well-formed points for sending in a create request.
func Raw(points []Point) []RawPoint {
	raw := make([]RawPoint, len(points))
	for i, p := range points {
		raw[i] = RawPoint{X: p.X, Y: p.Y, wellFormed: true}
	}
	return raw
}

// WellFormed reports whether the value was a pair of numeric coordinates.
func (p RawPoint) WellFormed() bool {
	return p.wellFormed
}

// Point returns the decoded coordinates.
func (p RawPoint) Point() Point {
	return Point{X: p.X, Y: p.Y}
}

// UnmarshalJSON classifies any JSON value as a point or a malformed point.
func (p *RawPoint) UnmarshalJSON(data []byte) error {
	*p = RawPoint{}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil || len(elems) != 2 {
		return nil
	}

	x, okX := parseCoordinate(elems[0])
	y, okY := parseCoordinate(elems[1])
	if !okX || !okY {
		return nil
	}

	p.X, p.Y, p.wellFormed = x, y, true
	return nil
}

// MarshalJSON encodes a well-formed point as [x, y] and anything else as null.
// Non-finite values use the quoted spellings accepted by UnmarshalJSON.
func (p RawPoint) MarshalJSON() ([]byte, error) {
	if !p.wellFormed {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.WriteString(formatCoordinate(p.X))
	buf.WriteByte(',')
	buf.WriteString(formatCoordinate(p.Y))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func formatCoordinate(v float64) string {
	switch {
	case math.IsNaN(v):
		return `"NaN"`
	case math.IsInf(v, 1):
		return `"Infinity"`
	case math.IsInf(v, -1):
		return `"-Infinity"`
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseCoordinate accepts a JSON number or one of the quoted non-finite
// spellings. Numbers too large for float64 decode to an infinity.
func parseCoordinate(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		switch s {
		case "NaN":
			return math.NaN(), true
		case "Infinity", "+Infinity":
			return math.Inf(1), true
		case "-Infinity":
			return math.Inf(-1), true
		}
		return 0, false
	}

	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return 0, false
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}
