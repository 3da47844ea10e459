package model

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Empty reports whether the box encloses no area.
func (b Box) Empty() bool {
	return b.XMax <= b.XMin || b.YMax <= b.YMin
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	u := b
	if o.XMin < u.XMin {
		u.XMin = o.XMin
	}
	if o.YMin < u.YMin {
		u.YMin = o.YMin
	}
	if o.XMax > u.XMax {
		u.XMax = o.XMax
	}
	if o.YMax > u.YMax {
		u.YMax = o.YMax
	}
	return u
}

// Intersects reports whether b and o overlap.
func (b Box) Intersects(o Box) bool {
	return b.XMin < o.XMax && o.XMin < b.XMax && b.YMin < o.YMax && o.YMin < b.YMax
}

// Point is a 2D position in pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrackRecord is one object's trajectory across a frame batch. The pipeline
// treats it as an opaque payload between the tracking and impact-analysis
// capabilities.
type TrackRecord struct {
	ObjectID   string  `json:"object_id"`
	Trajectory []Point `json:"trajectory"`
	LastBox    Box     `json:"last_box"`
}
