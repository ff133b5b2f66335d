package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Plan type validation
	validate.RegisterValidation("plan_type", func(fl validator.FieldLevel) bool {
		plan := fl.Field().String()
		validPlans := []string{"free", "single", "pack10", "pro_monthly", ""}
		for _, p := range validPlans {
			if plan == p {
				return true
			}
		}
		return false
	})

	// Country code validation (ISO 3166-1 alpha-2, uppercase)
	validate.RegisterValidation("country_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return true
		}
		if len(code) != 2 {
			return false
		}
		for i := 0; i < 2; i++ {
			if code[i] < 'A' || code[i] > 'Z' {
				return false
			}
		}
		return true
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "plan_type":
			errors[field] = "Invalid plan. Must be: free, single, pack10, or pro_monthly"
		case "country_code":
			errors[field] = "Invalid country code. Must be ISO 3166-1 alpha-2 (e.g. US)"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
