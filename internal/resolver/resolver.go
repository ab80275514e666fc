// internal/resolver/resolver.go

// Package resolver binds record values to a template's declared
// placeholders. Resolution is pure: no I/O, no clock, deterministic output
// for identical inputs.
package resolver

import (
	"strconv"
	"time"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

// DefaultDateLayout is used when a date placeholder declares no layout.
const DefaultDateLayout = "2006-01-02"

// Resolve joins each declared placeholder with its record value, normalized
// to render-ready form. The result follows declaration order. The first
// failing placeholder aborts resolution; sibling jobs are unaffected.
// Record fields with no matching placeholder are ignored.
func Resolve(tpl *models.Template, record models.DataRecord) (models.BoundVariables, error) {
	bound := make(models.BoundVariables, 0, len(tpl.Placeholders))

	for _, p := range tpl.Placeholders {
		val, ok := record[p.Name]
		if !ok {
			return nil, stderrors.NewMissingVariableError(p.Name)
		}

		switch val.Kind {
		case models.ValueText, models.ValueNumber, models.ValueDate, models.ValueImageRef:
		default:
			return nil, stderrors.NewUnknownValueKindError(p.Name, string(val.Kind))
		}

		bv, err := bind(p, val)
		if err != nil {
			return nil, err
		}
		bound = append(bound, bv)
	}

	return bound, nil
}

func bind(p models.Placeholder, val models.Value) (models.BoundVariable, error) {
	switch p.Type {
	case models.PlaceholderText:
		if val.Kind != models.ValueText {
			return models.BoundVariable{}, mismatch(p, val)
		}
		return models.BoundVariable{Placeholder: p, Content: val.Text}, nil

	case models.PlaceholderNumber:
		if val.Kind != models.ValueNumber {
			return models.BoundVariable{}, mismatch(p, val)
		}
		return models.BoundVariable{Placeholder: p, Content: formatNumber(val.Number)}, nil

	case models.PlaceholderDate:
		t, err := dateOf(p, val)
		if err != nil {
			return models.BoundVariable{}, err
		}
		layout := p.DateFormat
		if layout == "" {
			layout = DefaultDateLayout
		}
		return models.BoundVariable{Placeholder: p, Content: t.UTC().Format(layout)}, nil

	case models.PlaceholderImageRef:
		if val.Kind != models.ValueImageRef {
			return models.BoundVariable{}, mismatch(p, val)
		}
		return models.BoundVariable{Placeholder: p, Image: val.Image}, nil
	}

	return models.BoundVariable{}, stderrors.NewTypeMismatchError(p.Name, string(p.Type), string(val.Kind))
}

// dateOf accepts a date-tagged value, or a text-tagged one holding RFC3339
// or date-only input.
func dateOf(p models.Placeholder, val models.Value) (time.Time, error) {
	switch val.Kind {
	case models.ValueDate:
		return val.Date, nil
	case models.ValueText:
		if t, err := time.Parse(time.RFC3339, val.Text); err == nil {
			return t, nil
		}
		if t, err := time.Parse(DefaultDateLayout, val.Text); err == nil {
			return t, nil
		}
		return time.Time{}, stderrors.NewTypeMismatchError(p.Name, "date", "unparseable text")
	}
	return time.Time{}, mismatch(p, val)
}

// formatNumber renders the shortest decimal string that round-trips the
// value, locale-independent.
func formatNumber(n float64) string {
	if n == float64(int64(n)) && n > -1e15 && n < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func mismatch(p models.Placeholder, val models.Value) error {
	return stderrors.NewTypeMismatchError(p.Name, string(p.Type), string(val.Kind))
}
