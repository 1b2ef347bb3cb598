package factory

import (
	"fmt"
	"strings"
)

// Direction is a cell's forward facing. Up is +Y.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, 1
	case Right:
		return 1, 0
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	default:
		return 0, 0
	}
}

// RotateLeft turns -90 degrees (Up -> Left).
func (d Direction) RotateLeft() Direction { return (d + 3) % 4 }

// RotateRight turns +90 degrees (Up -> Right).
func (d Direction) RotateRight() Direction { return (d + 1) % 4 }

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	default:
		return "?"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "":
		return Up, nil
	case "RIGHT":
		return Right, nil
	case "DOWN":
		return Down, nil
	case "LEFT":
		return Left, nil
	default:
		return Up, fmt.Errorf("bad direction %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
