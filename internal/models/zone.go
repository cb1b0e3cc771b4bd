package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Zone represents a polygonal monitoring region on a camera frame
// with an occupancy capacity policy. Zones belong to one camera and
// one owning user; names are unique within that pair.
type Zone struct {
	ID               int64     `json:"id"`
	CameraID         int       `json:"camera_id"`
	UserID           int64     `json:"user_id"`
	Name             string    `json:"name"`
	Coordinates      []Point   `json:"coordinates"`
	CapacityLimit    int       `json:"capacity_limit"`
	WarningThreshold int       `json:"warning_threshold"`
	AlertColor       string    `json:"alert_color"`
	FrameWidth       int       `json:"frame_width"`
	FrameHeight      int       `json:"frame_height"`
	Incomplete       bool      `json:"incomplete"`
	CreatedAt        time.Time `json:"created_at"`
}

// Point is a single polygon vertex. It serializes as a two-element
// array [x, y] but also accepts the {"x": .., "y": ..} object form
// that older zone editors produced.
type Point struct {
	X int
	Y int
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes either [x, y] or {"x": .., "y": ..}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err == nil {
		p.X = int(pair[0])
		p.Y = int(pair[1])
		return nil
	}

	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid point format: %s", string(data))
	}
	p.X = int(obj.X)
	p.Y = int(obj.Y)
	return nil
}

// ZonePatch carries the optional fields of a zone update. Nil fields
// are left untouched.
type ZonePatch struct {
	Name        *string  `json:"name,omitempty"`
	Coordinates []Point  `json:"coordinates,omitempty"`
	FrameWidth  *int     `json:"frame_width,omitempty"`
	FrameHeight *int     `json:"frame_height,omitempty"`
	AlertColor  *string  `json:"alert_color,omitempty"`
}

// CapacityPolicy is the occupancy policy portion of a zone.
type CapacityPolicy struct {
	CapacityLimit    int    `json:"capacity_limit"`
	WarningThreshold int    `json:"warning_threshold"`
	AlertColor       string `json:"alert_color,omitempty"`
}
