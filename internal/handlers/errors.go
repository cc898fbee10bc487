package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sheffmachine/todo-api/internal/dto"
	"github.com/sheffmachine/todo-api/internal/service"
	"github.com/sheffmachine/todo-api/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// MalformedBodyError is returned when a request body is not valid JSON for its target.
type MalformedBodyError struct {
	Err error
}

func (e *MalformedBodyError) Error() string { return e.Err.Error() }
func (e *MalformedBodyError) Unwrap() error { return e.Err }

// TypeMismatchError reports a path or query parameter that does not parse as its type.
type TypeMismatchError struct {
	Param    string
	Value    string
	Expected string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %s: %q is not a valid %s", e.Param, e.Value, e.Expected)
}

const (
	InPath  = "path"
	InQuery = "query"
)

// MissingParamError reports a required path variable or query parameter that was not sent.
type MissingParamError struct {
	Name     string
	In       string
	Expected string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing %s parameter %s", e.In, e.Name)
}

// RouteNotFoundError is raised for requests no route matches.
type RouteNotFoundError struct {
	Method string
	Path   string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// problem is the translated form of an error, before it is rendered.
type problem struct {
	status      int
	category    string
	message     string
	details     map[string]any
	fieldErrors map[string]string
}

func (p problem) body(path string, ts time.Time) any {
	if p.fieldErrors != nil {
		return dto.ValidationErrorResponse{
			Timestamp:   ts,
			Status:      p.status,
			Error:       p.category,
			Message:     p.message,
			Path:        path,
			FieldErrors: p.fieldErrors,
		}
	}
	return dto.ErrorResponse{
		Timestamp: ts,
		Status:    p.status,
		Error:     p.category,
		Message:   p.message,
		Path:      path,
		Details:   p.details,
	}
}

// translate maps err to its status, category, message and details.
func translate(err error) problem {
	var svcErr service.Error
	if errors.As(err, &svcErr) {
		switch e := svcErr.(type) {
		case *service.NotFoundError:
			return problem{status: http.StatusNotFound, category: "Not Found", message: e.Error()}
		case *service.ValidationError:
			fe := e.FieldErrors
			if fe == nil {
				fe = map[string]string{}
			}
			return problem{status: http.StatusBadRequest, category: "Validation Error", message: e.Message, fieldErrors: fe}
		case *service.OperationError:
			return problem{status: http.StatusInternalServerError, category: "Operation Error", message: e.Message}
		case *service.InvalidArgumentError:
			return problem{status: http.StatusBadRequest, category: "Bad Request", message: e.Message}
		}
	}

	var (
		verrs    validator.ValidationErrors
		bodyErr  *MalformedBodyError
		mismatch *TypeMismatchError
		missing  *MissingParamError
		noRoute  *RouteNotFoundError
	)
	switch {
	case errors.As(err, &verrs):
		return problem{
			status:      http.StatusBadRequest,
			category:    "Validation Failed",
			message:     "Request validation failed",
			fieldErrors: dto.FieldErrors(verrs),
		}
	case errors.As(err, &bodyErr):
		return problem{
			status:   http.StatusBadRequest,
			category: "Malformed JSON",
			message:  "Request body contains invalid JSON",
			details:  map[string]any{"originalMessage": bodyErr.Err.Error()},
		}
	case errors.As(err, &mismatch):
		return problem{
			status:   http.StatusBadRequest,
			category: "Type Mismatch",
			message:  fmt.Sprintf("Invalid parameter type: '%s' cannot be converted to %s", mismatch.Value, mismatch.Expected),
			details: map[string]any{
				"parameter":    mismatch.Param,
				"value":        mismatch.Value,
				"expectedType": mismatch.Expected,
			},
		}
	case errors.As(err, &missing):
		if missing.In == InPath {
			return problem{
				status:   http.StatusBadRequest,
				category: "Missing Path Variable",
				message:  fmt.Sprintf("Required path variable '%s' is missing", missing.Name),
				details:  map[string]any{"missingVariable": missing.Name},
			}
		}
		return problem{
			status:   http.StatusBadRequest,
			category: "Missing Request Parameter",
			message:  fmt.Sprintf("Required parameter '%s' is missing", missing.Name),
			details:  map[string]any{"missingParameter": missing.Name, "expectedType": missing.Expected},
		}
	case errors.As(err, &noRoute):
		return problem{
			status:   http.StatusNotFound,
			category: "Not Found",
			message:  fmt.Sprintf("The requested endpoint '%s' was not found", noRoute.Path),
			details:  map[string]any{"method": noRoute.Method},
		}
	}

	if pge, ok := utils.PGIntegrityViolation(err); ok {
		details := map[string]any{"reason": "Constraint violation or duplicate data"}
		if pge.ConstraintName != "" {
			details["constraint"] = pge.ConstraintName
		}
		return problem{
			status:   http.StatusConflict,
			category: "Data Integrity Violation",
			message:  "The operation could not be completed due to data constraints",
			details:  details,
		}
	}

	return problem{
		status:   http.StatusInternalServerError,
		category: "Internal Server Error",
		message:  "An unexpected error occurred. Please try again later.",
		details:  map[string]any{"type": fmt.Sprintf("%T", err)},
	}
}

// ErrorHandler renders the last error a handler pushed with c.Error.
// 4xx are logged at warn with the message only, 5xx at error with the full chain.
func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, log, c.Errors.Last().Err)
	}
}

// Recovery turns a panic into a 500 response through the same translation.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		err, ok := rec.(error)
		if !ok {
			err = &PanicError{Value: rec}
		}
		writeError(c, log, err)
	})
}

// NoRoute answers requests that match no route.
func NoRoute(c *gin.Context) {
	_ = c.Error(&RouteNotFoundError{Method: c.Request.Method, Path: c.Request.URL.Path})
}

func writeError(c *gin.Context, log zerolog.Logger, err error) {
	p := translate(err)
	path := c.Request.URL.Path

	l := log.With().Str("request_id", RequestIDFrom(c)).Str("path", path).Logger()
	if p.status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("error_type", fmt.Sprintf("%T", err)).Msg(p.category)
	} else {
		l.Warn().Msgf("%s: %s", p.category, err.Error())
	}

	c.AbortWithStatusJSON(p.status, p.body(path, time.Now().UTC()))
}

// bindJSON decodes and validates the body into obj. Rule violations come back
// as validator.ValidationErrors, anything else as *MalformedBodyError.
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return &MalformedBodyError{Err: err}
}
