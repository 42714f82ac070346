package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// DateLayout is the date-only format accepted and produced by the API.
const DateLayout = "2006-01-02"

// AmountScale is the number of fractional digits a stored amount keeps.
// Balances are sums of amounts, so they stay within the same scale.
const AmountScale = 4

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

// initValidator registers the custom rules used by the input structs.
func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())

	// Input structs carry json tags so errors name the field the client sent.
	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := vld.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("register 'notblank': %w", err)
	}

	if err := vld.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return !value.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("register 'nonnegative_decimal': %w", err)
	}

	if err := vld.RegisterValidation("decimal_scale", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		places, err := strconv.ParseInt(fl.Param(), 10, 32)
		if err != nil {
			return false
		}
		return value.Equal(value.Truncate(int32(places)))
	}); err != nil {
		return nil, fmt.Errorf("register 'decimal_scale': %w", err)
	}

	return vld, nil
}

// validateStruct runs the struct's validate tags and reports the first
// failure as a ValidationError.
func validateStruct(payload any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return fmt.Errorf("%w: %w", ErrValidation, errValidate)
	}

	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldError(fieldErrs[0])
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required", "notblank":
		if isPatch(fe) {
			return Invalid(fe.Field(), "must not be empty")
		}
		return Invalid(fe.Field(), "is required")
	case "nonnegative_decimal":
		return Invalid(fe.Field(), "must not be negative")
	case "decimal_scale":
		return Invalid(fe.Field(), fmt.Sprintf("must have at most %s decimal places", fe.Param()))
	case "oneof":
		return Invalid(fe.Field(), "must be one of "+strings.Join(oneOfValues(fe.Param()), ", "))
	}
	return Invalid(fe.Field(), fmt.Sprintf("failed '%s' check", fe.Tag()))
}

// isPatch reports whether the failing field belongs to a partial update.
func isPatch(fe validator.FieldError) bool {
	return strings.HasSuffix(strings.SplitN(fe.StructNamespace(), ".", 2)[0], "Patch")
}

func oneOfValues(param string) []string {
	var values []string
	for param != "" {
		param = strings.TrimSpace(param)
		if strings.HasPrefix(param, "'") {
			end := strings.Index(param[1:], "'")
			if end < 0 {
				values = append(values, param[1:])
				break
			}
			values = append(values, param[1:end+1])
			param = param[end+2:]
			continue
		}
		word, rest, _ := strings.Cut(param, " ")
		values = append(values, word)
		param = rest
	}
	return values
}

// ParseTransactionType accepts a type name case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return TransactionTypeIncome, nil
	case "expense":
		return TransactionTypeExpense, nil
	case "transfer":
		return TransactionTypeTransfer, nil
	}
	return "", Invalid("type", "must be one of Income, Expense, Transfer")
}

// ParseAccountType accepts a type name case-insensitively, with or without
// the space in "Credit Card".
func ParseAccountType(s string) (AccountType, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, t := range AccountTypes {
		if strings.ToLower(strings.ReplaceAll(string(t), " ", "")) == norm {
			return t, nil
		}
	}
	return "", Invalid("type", "must be one of Checking, Savings, Credit Card, Cash, Investment, Other")
}

// ParseDate accepts a YYYY-MM-DD date or a full RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, Invalid("date", "must be an ISO-8601 date")
}

// ValidateNewTransaction checks the required fields of a create request.
func ValidateNewTransaction(in NewTransaction) error {
	return validateStruct(in)
}

// ValidateTransactionPatch checks the fields a patch supplies.
func ValidateTransactionPatch(p TransactionPatch) error {
	return validateStruct(p)
}

// ValidateNewAccount checks the fields of an account create request.
func ValidateNewAccount(in NewAccount) error {
	return validateStruct(in)
}

// ValidateAccountPatch checks the fields an account patch supplies.
func ValidateAccountPatch(p AccountPatch) error {
	return validateStruct(p)
}
