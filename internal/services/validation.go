package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"social-go/internal/models"
)

// validate is shared by every input DTO in this package.
var validate *validator.Validate

// 与前端表单一致：任意非空白字符 + @ + 任意非空白字符
var looseEmailPattern = regexp.MustCompile(`^\S+@\S+$`)

var eventCategories = map[models.EventCategory]struct{}{
	models.CategorySports: {},
	models.CategoryMusic:  {},
	models.CategoryArt:    {},
	models.CategoryFood:   {},
	models.CategoryTech:   {},
	models.CategorySocial: {},
	models.CategoryOther:  {},
}

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return looseEmailPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("eventcategory", func(fl validator.FieldLevel) bool {
		_, ok := eventCategories[models.EventCategory(fl.Field().String())]
		return ok
	})
}

// validateStruct runs the struct tags and converts failures into a *ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"_": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param()
	case "looseemail":
		return "must be a valid email address"
	case "eqfield":
		return "passwords do not match"
	case "eventcategory":
		return "unknown category"
	default:
		return "is invalid"
	}
}
