// internal/template/spec_test.go
package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

func validDefinition() *Definition {
	return &Definition{
		Name:         "badge",
		SubTypes:     []string{"event", "staff"},
		OutputFormat: models.FormatPNG,
		Width:        400,
		Height:       300,
		Placeholders: []models.Placeholder{
			{Name: "title", Type: models.PlaceholderText, Region: models.Region{X: 10, Y: 10, Width: 200, Height: 30}},
			{Name: "issued", Type: models.PlaceholderDate, Region: models.Region{X: 10, Y: 50, Width: 120, Height: 20}},
			{Name: "photo", Type: models.PlaceholderImageRef, Region: models.Region{X: 250, Y: 10, Width: 100, Height: 100}},
		},
	}
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr bool
	}{
		{
			name:   "valid definition",
			mutate: func(d *Definition) {},
		},
		{
			name:    "empty name",
			mutate:  func(d *Definition) { d.Name = "" },
			wantErr: true,
		},
		{
			name:    "unsupported output format",
			mutate:  func(d *Definition) { d.OutputFormat = "gif" },
			wantErr: true,
		},
		{
			name:    "no placeholders",
			mutate:  func(d *Definition) { d.Placeholders = nil },
			wantErr: true,
		},
		{
			name: "duplicate placeholder names",
			mutate: func(d *Definition) {
				d.Placeholders[1].Name = d.Placeholders[0].Name
			},
			wantErr: true,
		},
		{
			name: "region outside canvas",
			mutate: func(d *Definition) {
				d.Placeholders[0].Region.X = 350
			},
			wantErr: true,
		},
		{
			name: "region with zero height",
			mutate: func(d *Definition) {
				d.Placeholders[0].Region.Height = 0
			},
			wantErr: true,
		},
		{
			name: "unknown placeholder type",
			mutate: func(d *Definition) {
				d.Placeholders[0].Type = "barcode"
			},
			wantErr: true,
		},
		{
			name: "malformed color",
			mutate: func(d *Definition) {
				d.Placeholders[0].Color = "red"
			},
			wantErr: true,
		},
		{
			name: "valid color",
			mutate: func(d *Definition) {
				d.Placeholders[0].Color = "#00FF99"
			},
		},
		{
			name: "font options on image placeholder",
			mutate: func(d *Definition) {
				d.Placeholders[2].FontSize = 12
			},
			wantErr: true,
		},
		{
			name: "malformed background",
			mutate: func(d *Definition) {
				d.Background = "white"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := ValidateDefinition(def)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, stderrors.ErrCodeTemplateValidationFailed, stderrors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
