package common

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GenericEchoValidator validates bound request structs and reports the first failing field.
// Field names are taken from the form tag.
type GenericEchoValidator struct {
	Validator *validator.Validate
}

func NewGenericEchoValidator() *GenericEchoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// booleano accepts anything strconv.ParseBool does
	if err := v.RegisterValidation("booleano", isBooleano); err != nil {
		panic(fmt.Sprintf("failed to register booleano validation: %v", err))
	}
	return &GenericEchoValidator{Validator: v}
}

func isBooleano(fl validator.FieldLevel) bool {
	_, err := strconv.ParseBool(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = NewGenericEchoValidator().Validator
	}
	err := gv.Validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fieldMessage(fieldErrors[0]))
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
}

func fieldMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("Campo '%s' é obrigatório e deve ser uma string", fieldError.Field())
	case "booleano":
		return fmt.Sprintf("Campo '%s' deve ser um booleano (true ou false)", fieldError.Field())
	default:
		return fmt.Sprintf("Campo '%s' é inválido", fieldError.Field())
	}
}
