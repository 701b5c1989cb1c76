// Package handlers holds the REST API handlers. A handler binds the request,
// builds a command, calls the use case, and maps the result or error into
// the response envelope.
package handlers

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
)

var setupOnce sync.Once

// SetupValidator registers the custom validators on gin's binding engine.
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})

			_ = v.RegisterValidation("money_amount", validateMoneyAmount)
			_ = v.RegisterValidation("ng_phone", validateNigerianPhone)
			_ = v.RegisterValidation("pin", validatePinFormat)
		}
	})
}

// validateMoneyAmount accepts decimal Naira strings, at most 2 places.
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

func validateMoneyAmount(fl validator.FieldLevel) bool {
	return moneyPattern.MatchString(fl.Field().String())
}

// validateNigerianPhone accepts +234/234/0 prefixed MSISDNs.
var phonePattern = regexp.MustCompile(`^(?:\+?234|0)[789][01]\d{8}$`)

func validateNigerianPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// validatePinFormat checks the 4-digit shape only; strength rules live in
// the use case.
var pinPattern = regexp.MustCompile(`^\d{4}$`)

func validatePinFormat(fl validator.FieldLevel) bool {
	return pinPattern.MatchString(fl.Field().String())
}

// HandleValidationErrors maps binding failures to the envelope.
func HandleValidationErrors(c *gin.Context, err error) {
	var fieldErrors []common.FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			fieldErrors = append(fieldErrors, common.FieldError{
				Field:   fieldErr.Field(),
				Message: getValidationMessage(fieldErr),
				Code:    fieldErr.Tag(),
			})
		}
	}

	if len(fieldErrors) == 0 {
		common.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	common.ValidationErrorResponse(c, fieldErrors)
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too short (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too long (maximum: " + fe.Param() + ")"
	case "oneof":
		return "Value must be one of: " + fe.Param()
	case "money_amount":
		return "Invalid amount format (use decimal like '100.50')"
	case "ng_phone":
		return "Invalid Nigerian phone number"
	case "pin":
		return "PIN must be exactly 4 digits"
	default:
		return "Invalid value"
	}
}

// BindJSON binds the JSON body; false means the error response was sent.
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters.
func BindQuery[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindURI binds URI parameters.
func BindURI[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindUri(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// PaginationParams are the page/per_page query values.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads pagination with the 20/100 defaults.
func ParsePagination(c *gin.Context) PaginationParams {
	params := PaginationParams{Page: 1, PerPage: 20}

	if page := c.Query("page"); page != "" {
		if p := parseInt(page); p > 0 {
			params.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp := parseInt(perPage); pp > 0 && pp <= 100 {
			params.PerPage = pp
		}
	}
	return params
}

func parseInt(s string) int {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// BuildMeta builds the pagination meta block.
func BuildMeta(params PaginationParams, total int) *common.APIMeta {
	totalPages := total / params.PerPage
	if total%params.PerPage > 0 {
		totalPages++
	}
	return &common.APIMeta{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
