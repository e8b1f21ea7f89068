package input

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Accepted classifications, compared after Normalize
var (
	LocationTypes = []string{"urban", "semi-urban", "suburban", "rural"}
	TerrainTypes  = []string{"normal", "rocky", "water crossing", "difficult", "extreme"}
	TrafficLevels = []string{"standard", "low", "medium", "high", "critical"}
)

// ValidationRule registers one custom tag
type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator wraps go-playground/validator with the site rules registered
type Validator struct {
	validator *validator.Validate
	rules     []ValidationRule
}

// NewValidator creates a validator with the site rules registered
func NewValidator() *Validator {
	v := &Validator{validator: validator.New(validator.WithRequiredStructEnabled())}
	v.Register(NewSiteValidationRules()...)
	return v
}

// Register adds custom rules
func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
	v.rules = append(v.rules, rules...)
}

// Struct validates s against its struct tags
func (v *Validator) Struct(s any) error {
	return v.validator.Struct(s)
}

// NewSiteValidationRules returns the classification tags used by SiteParams
func NewSiteValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("location_type", oneOfValidator(LocationTypes, LocationKey)),
		},
		{
			Rule: registerFn("terrain_type", oneOfValidator(TerrainTypes, TerrainKey)),
		},
		{
			Rule: registerFn("traffic_level", oneOfValidator(TrafficLevels, TrafficKey)),
		},
	}
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func oneOfValidator(allowed []string, normalize func(string) string) func(fl validator.FieldLevel) bool {
	return func(fl validator.FieldLevel) bool {
		val, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		val = normalize(val)
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// LocationKey normalizes a location type ("Semi_Urban" -> "semi-urban")
func LocationKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

// TerrainKey normalizes a terrain type ("Water_Crossing" -> "water crossing")
func TerrainKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

// TrafficKey normalizes a traffic management level
func TrafficKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
