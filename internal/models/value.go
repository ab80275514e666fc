// internal/models/value.go
package models

import "time"

// ValueKind tags the closed set of record value variants.
type ValueKind string

const (
	ValueText     ValueKind = "text"
	ValueNumber   ValueKind = "number"
	ValueDate     ValueKind = "date"
	ValueImageRef ValueKind = "image-ref"
)

// Value is one tagged datum in a data record. Exactly the field matching
// Kind is meaningful; the others are zero.
type Value struct {
	Kind   ValueKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
	Date   time.Time `json:"date,omitempty"`
	Image  []byte    `json:"image,omitempty"`
}

// TextValue constructs a text-tagged value.
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

// NumberValue constructs a number-tagged value.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Number: n} }

// DateValue constructs a date-tagged value.
func DateValue(t time.Time) Value { return Value{Kind: ValueDate, Date: t} }

// ImageRefValue constructs an image-tagged value carrying the raw bytes.
func ImageRefValue(b []byte) Value { return Value{Kind: ValueImageRef, Image: b} }

// DataRecord maps field names to tagged values for one render job.
type DataRecord map[string]Value

// BoundVariable is a placeholder joined with its resolved, normalized value.
// Text, number and date values arrive pre-rendered in Content; image values
// carry their payload in Image.
type BoundVariable struct {
	Placeholder Placeholder
	Content     string
	Image       []byte
}

// BoundVariables holds one entry per declared placeholder, in declaration order.
type BoundVariables []BoundVariable
