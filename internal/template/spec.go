// internal/template/spec.go
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

// Definition is the input for template creation. Setting PreviousID creates
// the next version of the named template.
type Definition struct {
	Name         string               `json:"name"`
	SubTypes     []string             `json:"subTypes,omitempty"`
	PreviousID   string               `json:"previousId,omitempty"`
	OutputFormat models.OutputFormat  `json:"outputFormat"`
	Width        int                  `json:"width"`
	Height       int                  `json:"height"`
	Background   string               `json:"background,omitempty"`
	Placeholders []models.Placeholder `json:"placeholders"`
}

// definitionSchema constrains the definition shape before structural checks.
var definitionSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"name", "outputFormat", "width", "height", "placeholders"},
	"properties": map[string]interface{}{
		"name": map[string]interface{}{"type": "string", "minLength": 1},
		"subTypes": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"outputFormat": map[string]interface{}{"type": "string", "enum": []string{"png", "jpeg"}},
		"width":        map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10000},
		"height":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10000},
		"placeholders": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"name", "type", "region"},
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string", "minLength": 1},
					"type": map[string]interface{}{
						"type": "string",
						"enum": []string{"text", "number", "date", "image-ref"},
					},
					"region": map[string]interface{}{
						"type":     "object",
						"required": []string{"x", "y", "width", "height"},
					},
				},
			},
		},
	},
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateDefinition checks a definition against the schema and the
// structural rules the schema cannot express. All failures surface as
// TEMPLATE_VALIDATION_FAILED.
func ValidateDefinition(def *Definition) error {
	schemaLoader := gojsonschema.NewGoLoader(definitionSchema)
	documentLoader := gojsonschema.NewGoLoader(def)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return stderrors.NewTemplateValidationFailedError(err.Error())
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return stderrors.NewTemplateValidationFailedError(strings.Join(details, "; "))
	}

	seen := make(map[string]bool, len(def.Placeholders))
	for _, p := range def.Placeholders {
		if seen[p.Name] {
			return stderrors.NewTemplateValidationFailedError(
				fmt.Sprintf("duplicate placeholder name %q", p.Name))
		}
		seen[p.Name] = true

		if err := validateRegion(p, def.Width, def.Height); err != nil {
			return err
		}
		if p.Color != "" && !colorPattern.MatchString(p.Color) {
			return stderrors.NewTemplateValidationFailedError(
				fmt.Sprintf("placeholder %q: color %q is not #RRGGBB", p.Name, p.Color))
		}
		if p.Type == models.PlaceholderImageRef && (p.FontSize != 0 || p.DateFormat != "") {
			return stderrors.NewTemplateValidationFailedError(
				fmt.Sprintf("placeholder %q: image regions take no font or date options", p.Name))
		}
	}

	if def.Background != "" && !colorPattern.MatchString(def.Background) {
		return stderrors.NewTemplateValidationFailedError(
			fmt.Sprintf("background %q is not #RRGGBB", def.Background))
	}

	return nil
}

func validateRegion(p models.Placeholder, canvasW, canvasH int) error {
	r := p.Region
	if r.Width <= 0 || r.Height <= 0 {
		return stderrors.NewTemplateValidationFailedError(
			fmt.Sprintf("placeholder %q: region has non-positive size", p.Name))
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > canvasW || r.Y+r.Height > canvasH {
		return stderrors.NewTemplateValidationFailedError(
			fmt.Sprintf("placeholder %q: region exceeds the %dx%d canvas", p.Name, canvasW, canvasH))
	}
	return nil
}
