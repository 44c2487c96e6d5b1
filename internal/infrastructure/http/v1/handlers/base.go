// Package handlers provides HTTP request handlers.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/bulk"
)

var setupOnce sync.Once

// SetupValidator makes binding errors report json/form field names and
// makes JSON binding reject fields the request type does not declare.
func SetupValidator() {
	setupOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	SetupValidator()
	return &BaseHandler{}
}

// BindJSON binds and validates the JSON body. An empty body is validated
// as the zero value so missing fields are reported per field.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	var err error
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		err = binding.Validator.ValidateStruct(obj)
	} else {
		err = c.ShouldBindJSON(obj)
	}
	if err != nil {
		h.HandleError(c, bindError("invalid request body", err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.HandleError(c, bindError("invalid query parameters", err))
		return false
	}
	return true
}

// ParseID reads the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (id.ID, bool) {
	v, err := id.Parse(c.Param("id"))
	if err != nil {
		h.HandleError(c, apperror.NewFieldError("id", "is not a valid identifier"))
		return id.Nil(), false
	}
	return v, true
}

// HandleError registers err and aborts; middleware.ErrorHandler renders it.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 with the created record.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Bulk sends a bulk result with 200, 207 or 400.
func (h *BaseHandler) Bulk(c *gin.Context, res bulk.Result) {
	c.JSON(res.HTTPStatus(), res)
}

func bindError(message string, err error) *apperror.AppError {
	appErr := apperror.NewValidation(message)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			appErr.WithField(fieldPath(fe), reason(fe))
		}
		return appErr
	}
	if name, ok := unknownField(err); ok {
		return appErr.WithField(name, "is not a known field")
	}
	return appErr.WithDetail("error", err.Error())
}

// unknownField extracts the name from encoding/json's
// `json: unknown field "x"`, which has no typed error.
func unknownField(err error) (string, bool) {
	rest, ok := strings.CutPrefix(err.Error(), `json: unknown field "`)
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(rest, `"`), true
}

// fieldPath drops the root struct name: "CreateQCRequest.products[0].batchNumber" -> "products[0].batchNumber".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func reason(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if isList {
			return fmt.Sprintf("must contain at most %s entries", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid":
		return "is not a valid identifier"
	default:
		return "is invalid"
	}
}
