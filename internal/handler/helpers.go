package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"retailpos/internal/apierror"
	"retailpos/internal/middleware"
	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their wire name (json, else form tag).
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("MALFORMED_JSON", "invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("MALFORMED_QUERY", "invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// fieldPath drops the struct name: "CreateOrderRequest.items[0].unit_id" -> "items[0].unit_id".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// actorFrom builds the tenant-scoped caller from JWT claims. JWTAuth has
// already checked both ids parse.
func actorFrom(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}
	}
	ownerID, _ := uuid.Parse(claims.OwnerID)
	userID, _ := uuid.Parse(claims.UserID)
	return service.Actor{OwnerID: ownerID, UserID: userID}
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("INVALID_ID", name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service errors to HTTP:
// validation 422, conflict 409, not found 404, dependency 503, anything else 500.
func respondError(c *gin.Context, err error) {
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		derr *service.DependencyError
	)
	switch {
	case errors.As(err, &verr):
		body := apierror.NewFieldValidation(verr.Field, verr.Message)
		if verr.Field == "" {
			body = &apierror.ValidationError{Detail: verr.Message, Code: "VALIDATION_ERROR", Fields: map[string]string{}}
		}
		if verr.Code != "" {
			body.Code = verr.Code
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, apierror.WithCode(cerr.Code, cerr.Message))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.WithCode("NOT_FOUND", err.Error()))
	case errors.As(err, &derr):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode("DEPENDENCY_UNAVAILABLE",
			derr.Dependency+" is unavailable, nothing was saved; retry the request"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}
