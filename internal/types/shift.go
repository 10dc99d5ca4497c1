// README: Daily service windows a route or a driver is scheduled into.
package types

import (
	"fmt"
	"strings"
)

type Shift string

const (
	ShiftAM        Shift = "AM"
	ShiftPM        Shift = "PM"
	ShiftOuroboros Shift = "OUROBOROS"
)

var AllShifts = []Shift{ShiftAM, ShiftPM, ShiftOuroboros}

func (s Shift) IsValid() bool {
	switch s {
	case ShiftAM, ShiftPM, ShiftOuroboros:
		return true
	default:
		return false
	}
}

func (s Shift) String() string {
	return string(s)
}

// ParseShift accepts any letter case.
func ParseShift(v string) (Shift, error) {
	s := Shift(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown shift %q", v)
	}
	return s, nil
}
