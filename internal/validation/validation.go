// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/tipout/internal/tipout"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	mustRegister("localdate", func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})
	mustRegister("squareid", func(fl validator.FieldLevel) bool {
		return IsValidID(fl.Field().String())
	})
	mustRegister("weekstart", func(fl validator.FieldLevel) bool {
		_, err := tipout.ParseWeekStart(fl.Field().String())
		return err == nil
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// IsValidDate проверяет, что строка является календарной датой YYYY-MM-DD.
func IsValidDate(s string) bool {
	_, err := time.Parse(tipout.DateLayout, s)
	return err == nil
}

// IsValidID проверяет идентификатор точки, сотрудника или заказа.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ReportQuery описывает параметры запроса отчёта.
type ReportQuery struct {
	Date           string   `validate:"omitempty,localdate"`
	From           string   `validate:"required_with=To,omitempty,localdate"`
	To             string   `validate:"required_with=From,omitempty,localdate"`
	WeekStart      string   `validate:"omitempty,weekstart"`
	IgnoreDates    []string `validate:"dive,localdate"`
	LocationIDs    []string `validate:"dive,squareid"`
	SimulateMember string   `validate:"required_with=SimulateCutoff,omitempty,squareid"`
	SimulateCutoff *int     `validate:"required_with=SimulateMember,omitempty,min=0,max=23"`
}

// Struct проверяет структуру по тегам validate.
// Ошибки полей собираются в одно сообщение вида "Field: tag".
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+": "+fe.Tag())
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid %s", strings.Join(msgs, ", "))
}
