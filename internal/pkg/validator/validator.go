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
	// Refund choice on booking cancellation
	validate.RegisterValidation("refund_choice", func(fl validator.FieldLevel) bool {
		choice := fl.Field().String()
		return choice == "bank" || choice == "giftcard"
	})

	// Gift card code format: GC- followed by 12 uppercase hex characters
	validate.RegisterValidation("giftcard_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != 15 || !strings.HasPrefix(code, "GC-") {
			return false
		}
		for _, c := range code[3:] {
			if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
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

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = message(fe)
	}
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	case "refund_choice":
		return "must be one of: bank, giftcard"
	case "giftcard_code":
		return "must look like GC- followed by 12 uppercase hex characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
