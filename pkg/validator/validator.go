package validator

import (
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	ValidateField(field string, value interface{}, rules ...string) error
}

type validator struct {
	v *playground.Validate
}

func New() Validator {
	v := playground.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &validator{v: v}
}

// Validate checks struct tags and returns the first failure as a readable message.
func (v *validator) Validate(obj interface{}) error {
	if err := v.v.Struct(obj); err != nil {
		return describe(err)
	}
	return nil
}

func (v *validator) ValidateField(field string, value interface{}, rules ...string) error {
	if err := v.v.Var(value, strings.Join(rules, ",")); err != nil {
		if errs, ok := err.(playground.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("%s %s", field, ruleMessage(errs[0]))
		}
		return err
	}
	return nil
}

func describe(err error) error {
	errs, ok := err.(playground.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	e := errs[0]
	return fmt.Errorf("%s %s", e.Field(), ruleMessage(e))
}

func ruleMessage(e playground.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s item(s)", e.Param())
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("must be one of %s", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", e.Param())
	}
	return fmt.Sprintf("failed %q validation", e.Tag())
}
