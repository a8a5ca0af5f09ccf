package domain

import "fmt"

// Point is a star position on the constellation canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Connection joins two points by index.
type Connection [2]int

// Constellation is the artifact generated at the end of a journey.
type Constellation struct {
	Path        Path         `json:"path" validate:"required,oneof=wonder reflection"`
	Label       string       `json:"label" validate:"required"`
	Description string       `json:"description"`
	Points      []Point      `json:"points" validate:"required,min=1"`
	Connections []Connection `json:"connections"`
}

// Validate checks that every connection references two distinct points.
func (c *Constellation) Validate() error {
	if c == nil {
		return nil
	}
	if !c.Path.Valid() {
		return fmt.Errorf("%w: constellation path %q", ErrValidation, c.Path)
	}
	if len(c.Points) == 0 {
		return fmt.Errorf("%w: constellation has no points", ErrValidation)
	}
	for i, conn := range c.Connections {
		a, b := conn[0], conn[1]
		if a < 0 || b < 0 || a >= len(c.Points) || b >= len(c.Points) {
			return fmt.Errorf("%w: connection %d [%d, %d] out of range for %d points", ErrValidation, i, a, b, len(c.Points))
		}
		if a == b {
			return fmt.Errorf("%w: connection %d joins point %d to itself", ErrValidation, i, a)
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Constellation) Clone() *Constellation {
	if c == nil {
		return nil
	}
	out := *c
	out.Points = append([]Point(nil), c.Points...)
	out.Connections = append([]Connection(nil), c.Connections...)
	return &out
}
