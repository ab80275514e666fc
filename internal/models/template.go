// internal/models/template.go
package models

import "time"

// PlaceholderType enumerates the typed placeholder kinds a template may declare.
type PlaceholderType string

const (
	PlaceholderText     PlaceholderType = "text"
	PlaceholderNumber   PlaceholderType = "number"
	PlaceholderDate     PlaceholderType = "date"
	PlaceholderImageRef PlaceholderType = "image-ref"
)

// TemplateState tracks the template lifecycle.
type TemplateState string

const (
	TemplateActive  TemplateState = "active"
	TemplateRetired TemplateState = "retired"
)

// OutputFormat enumerates supported render output media.
type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
)

// Region is a rectangular area on the template canvas, in pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Placeholder declares a named, typed, positioned slot in a template.
type Placeholder struct {
	Name       string          `json:"name"`
	Type       PlaceholderType `json:"type"`
	Region     Region          `json:"region"`
	FontSize   int             `json:"fontSize,omitempty"`
	DateFormat string          `json:"dateFormat,omitempty"` // Go reference layout, e.g. 2006-01-02
	Color      string          `json:"color,omitempty"`      // #RRGGBB, defaults to black
}

// Template is the immutable definition renders are produced from.
// Content never changes after creation; new behavior means a new version.
type Template struct {
	ID           string        `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	SubTypes     []string      `json:"subTypes,omitempty" db:"sub_types"` // free-form categorization, e.g. "menu", "badge"
	Version      int           `json:"version" db:"version"`
	PreviousID   string        `json:"previousId,omitempty" db:"previous_id"`
	State        TemplateState `json:"state" db:"state"`
	OutputFormat OutputFormat  `json:"outputFormat" db:"output_format"`
	Width        int           `json:"width" db:"width"`
	Height       int           `json:"height" db:"height"`
	Background   string        `json:"background,omitempty" db:"background"` // canvas fill, #RRGGBB, defaults to white
	Placeholders []Placeholder `json:"placeholders" db:"placeholders"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}

// IsRetired reports whether the template rejects new render batches.
func (t *Template) IsRetired() bool {
	return t.State == TemplateRetired
}
