// internal/resolver/resolver_test.go
package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

func testTemplate() *models.Template {
	return &models.Template{
		ID:           "tpl-1",
		Name:         "badge",
		OutputFormat: models.FormatPNG,
		Width:        400,
		Height:       300,
		Placeholders: []models.Placeholder{
			{Name: "title", Type: models.PlaceholderText, Region: models.Region{X: 10, Y: 10, Width: 200, Height: 30}},
			{Name: "score", Type: models.PlaceholderNumber, Region: models.Region{X: 10, Y: 50, Width: 80, Height: 20}},
			{Name: "issued", Type: models.PlaceholderDate, Region: models.Region{X: 10, Y: 80, Width: 120, Height: 20}},
		},
	}
}

func TestResolve(t *testing.T) {
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	record := models.DataRecord{
		"title":  models.TextValue("Alex Kim"),
		"score":  models.NumberValue(97),
		"issued": models.DateValue(issued),
		"extra":  models.TextValue("ignored"),
	}

	bound, err := Resolve(testTemplate(), record)
	require.NoError(t, err)
	require.Len(t, bound, 3)

	// Declaration order, not record order
	assert.Equal(t, "title", bound[0].Placeholder.Name)
	assert.Equal(t, "Alex Kim", bound[0].Content)
	assert.Equal(t, "97", bound[1].Content)
	assert.Equal(t, "2026-03-14", bound[2].Content)
}

func TestResolve_MissingVariable(t *testing.T) {
	record := models.DataRecord{
		"title": models.TextValue("Alex Kim"),
		"score": models.NumberValue(97),
	}

	_, err := Resolve(testTemplate(), record)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeMissingVariable, stderrors.CodeOf(err))
}

func TestResolve_TypeMismatch(t *testing.T) {
	record := models.DataRecord{
		"title":  models.TextValue("Alex Kim"),
		"score":  models.TextValue("ninety-seven"),
		"issued": models.DateValue(time.Now()),
	}

	_, err := Resolve(testTemplate(), record)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTypeMismatch, stderrors.CodeOf(err))
}

func TestResolve_UnknownValueKind(t *testing.T) {
	record := models.DataRecord{
		"title":  {Kind: "blob", Text: "?"},
		"score":  models.NumberValue(1),
		"issued": models.DateValue(time.Now()),
	}

	_, err := Resolve(testTemplate(), record)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeUnknownValueKind, stderrors.CodeOf(err))
}

func TestResolve_DateFromText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"rfc3339", "2026-03-14T09:30:00Z", "2026-03-14"},
		{"rfc3339 with offset", "2026-03-14T23:30:00-05:00", "2026-03-15"},
		{"date only", "2026-03-14", "2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := models.DataRecord{
				"title":  models.TextValue("x"),
				"score":  models.NumberValue(1),
				"issued": models.TextValue(tt.input),
			}

			bound, err := Resolve(testTemplate(), record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bound[2].Content)
		})
	}
}

func TestResolve_DateCustomLayout(t *testing.T) {
	tpl := testTemplate()
	tpl.Placeholders[2].DateFormat = "02 Jan 2006"

	record := models.DataRecord{
		"title":  models.TextValue("x"),
		"score":  models.NumberValue(1),
		"issued": models.DateValue(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
	}

	bound, err := Resolve(tpl, record)
	require.NoError(t, err)
	assert.Equal(t, "14 Mar 2026", bound[2].Content)
}

func TestResolve_DateUnparseableText(t *testing.T) {
	record := models.DataRecord{
		"title":  models.TextValue("x"),
		"score":  models.NumberValue(1),
		"issued": models.TextValue("next tuesday"),
	}

	_, err := Resolve(testTemplate(), record)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTypeMismatch, stderrors.CodeOf(err))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{97, "97"},
		{-3, "-3"},
		{0, "0"},
		{3.5, "3.5"},
		{0.1, "0.1"},
		{1234567.25, "1.23456725e+06"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatNumber(tt.in), "formatNumber(%v)", tt.in)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	record := models.DataRecord{
		"title":  models.TextValue("Alex Kim"),
		"score":  models.NumberValue(97.5),
		"issued": models.TextValue("2026-03-14"),
	}

	a, err := Resolve(testTemplate(), record)
	require.NoError(t, err)
	b, err := Resolve(testTemplate(), record)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
