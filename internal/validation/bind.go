package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request_body",
			"message": err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "request failed validation",
			"fields":  validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

// BindDocument binds a free-form JSON object. Field names that a document
// store would read as operators or paths are rejected with 400.
func BindDocument(c *gin.Context) (map[string]any, error) {
	doc := map[string]any{}
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request_body",
			"message": err.Error(),
		})
		return nil, err
	}
	if err := CheckDocumentKeys(doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
		})
		return nil, err
	}
	return doc, nil
}

// CheckDocumentKeys rejects empty keys, keys starting with '$' and keys
// containing '.', at any depth.
func CheckDocumentKeys(doc map[string]any) error {
	for k, v := range doc {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			return fmt.Errorf("field name %q is not allowed", k)
		}
		if err := checkNested(v); err != nil {
			return err
		}
	}
	return nil
}

func checkNested(v any) error {
	switch t := v.(type) {
	case map[string]any:
		return CheckDocumentKeys(t)
	case []any:
		for _, e := range t {
			if err := checkNested(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Namespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
