package types

import (
	"fmt"
	"time"
)

// Operation identifies one of the vision analysis kinds a user can pick
type Operation string

// Supported operations
const (
	OpLabels   Operation = "labels"
	OpWeb      Operation = "web"
	OpObjects  Operation = "objects"
	OpText     Operation = "text"
	OpLogo     Operation = "logo"
	OpExplicit Operation = "explicit"
)

var operationLabels = map[Operation]string{
	OpLabels:   "標籤辨識",
	OpWeb:      "網頁辨識",
	OpObjects:  "物體辨識",
	OpText:     "OCR文字辨識",
	OpLogo:     "Logo辨識",
	OpExplicit: "不當內容辨識",
}

// Operations returns all operations in the order they are offered to the user
func Operations() []Operation {
	return []Operation{OpLabels, OpWeb, OpObjects, OpText, OpLogo, OpExplicit}
}

// Valid reports whether o is a known operation
func (o Operation) Valid() bool {
	_, ok := operationLabels[o]
	return ok
}

// Label returns the display name, used both as result header and failure prefix
func (o Operation) Label() string {
	if l, ok := operationLabels[o]; ok {
		return l
	}
	return string(o)
}

// ParseOperation accepts either an operation tag or its display label
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if op.Valid() {
		return op, nil
	}
	for tag, label := range operationLabels {
		if label == s {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unknown operation: %q", s)
}

// Vertex is a point with coordinates normalized to [0,1]
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LabeledPolygon is a normalized outline with a caption drawn at its first vertex
type LabeledPolygon struct {
	Label    string   `json:"label"`
	Vertices []Vertex `json:"vertices"`
}

// HistoryEntry records one completed analysis within a session
type HistoryEntry struct {
	Image       []byte    `json:"-"`
	Thumbnail   []byte    `json:"-"`
	Result      string    `json:"result"`
	Description string    `json:"description"`
	Operation   Operation `json:"operation"`
	CreatedAt   time.Time `json:"created_at"`
}
