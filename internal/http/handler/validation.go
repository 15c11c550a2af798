package handler

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sifan077/LinkPulse/internal/app/service"
)

var validate = newValidator()

// newValidator knows two extra tags: "slug" for short path segments and
// "weburl" for absolute http(s) targets. Field errors use JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
		return service.ValidSlug(fl.Field().String())
	})
	mustRegister(v, "weburl", func(fl validator.FieldLevel) bool {
		return service.ValidTargetURL(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}
