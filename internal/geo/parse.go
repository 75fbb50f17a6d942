package geo

import (
	"strconv"
	"strings"

	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// ParseLatitude parses a latitude value that may be given as a plain
// decimal degree string ("-33.9461") or as a packed DMS string in
// DDMMSS.SSS form (6 integer digits before the decimal point, split
// 2-2-2 into degrees/minutes/seconds). A leading sign applies to the
// whole value.
func ParseLatitude(raw string) (float64, error) {
	v, err := parseDMSOrDecimal(raw, 2, "latitude")
	if err != nil {
		return 0, err
	}
	if v < -90 || v > 90 {
		return 0, xerrors.NewParseError("latitude", raw, "out of range [-90, 90]")
	}
	return v, nil
}

// ParseLongitude parses a longitude value that may be given as a plain
// decimal degree string ("151.1772") or as a packed DMS string in
// DDDMMSS.SSS form (7 integer digits before the decimal point, split
// 3-2-2 into degrees/minutes/seconds).
func ParseLongitude(raw string) (float64, error) {
	v, err := parseDMSOrDecimal(raw, 3, "longitude")
	if err != nil {
		return 0, err
	}
	if v < -180 || v > 180 {
		return 0, xerrors.NewParseError("longitude", raw, "out of range [-180, 180]")
	}
	return v, nil
}

// parseDMSOrDecimal dispatches between plain decimal-degree parsing and
// packed-DMS parsing based on the number of integer digits preceding
// any decimal point, after a leading sign is stripped. degreeDigits is
// 2 for latitude (DD), 3 for longitude (DDD).
func parseDMSOrDecimal(raw string, degreeDigits int, field string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, xerrors.NewParseError(field, raw, "empty value")
	}

	sign := 1.0
	unsigned := s
	switch unsigned[0] {
	case '+':
		unsigned = unsigned[1:]
	case '-':
		sign = -1.0
		unsigned = unsigned[1:]
	}

	intPart := unsigned
	if i := strings.IndexByte(unsigned, '.'); i >= 0 {
		intPart = unsigned[:i]
	}

	switch len(intPart) {
	case degreeDigits + 4:
		// Packed DMS: degreeDigits for degrees, then 2 for minutes, 2 for seconds.
		deg, err := strconv.ParseFloat(unsigned[:degreeDigits], 64)
		if err != nil {
			return 0, xerrors.NewParseError(field, raw, "invalid degrees component")
		}
		min, err := strconv.ParseFloat(unsigned[degreeDigits:degreeDigits+2], 64)
		if err != nil {
			return 0, xerrors.NewParseError(field, raw, "invalid minutes component")
		}
		sec, err := strconv.ParseFloat(unsigned[degreeDigits+2:], 64)
		if err != nil {
			return 0, xerrors.NewParseError(field, raw, "invalid seconds component")
		}
		if min >= 60 || sec >= 60 {
			return 0, xerrors.NewParseError(field, raw, "minutes/seconds out of range")
		}
		return sign * (deg + min/60.0 + sec/3600.0), nil
	default:
		v, err := strconv.ParseFloat(unsigned, 64)
		if err != nil {
			return 0, xerrors.NewParseError(field, raw, "not a recognized decimal or DMS value")
		}
		return sign * v, nil
	}
}
