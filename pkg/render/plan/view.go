package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// View is the projection plane.
type View string

// Supported views.
const (
	ViewXY  View = "xy"
	ViewXZ  View = "xz"
	ViewYZ  View = "yz"
	ViewIso View = "iso"
)

// Views lists the supported view names.
var Views = []string{string(ViewXY), string(ViewXZ), string(ViewYZ), string(ViewIso)}

// ParseView validates a view name. The empty string is ViewXY.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(s)); v {
	case "":
		return ViewXY, nil
	case ViewXY, ViewXZ, ViewYZ, ViewIso:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q (want one of %s)", s, strings.Join(Views, ", "))
}

// Project maps a point onto the view plane.
func (v View) Project(x, y, z float64) (float64, float64) {
	var px, py float64
	switch v {
	case ViewXZ:
		px, py = x, z
	case ViewYZ:
		px, py = y, z
	case ViewIso:
		px, py = x-y, (x+y)/2-z
	default:
		px, py = x, y
	}
	return normalizeZero(px), normalizeZero(py)
}

func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

// num formats a coordinate with at most three decimals and never "-0".
func num(v float64) string {
	return strconv.FormatFloat(normalizeZero(math.Round(v*1000)/1000), 'f', -1, 64)
}
