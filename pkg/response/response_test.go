package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestSuccessResponse(t *testing.T) {
	t.Run("without data", func(t *testing.T) {
		resp := SuccessResponse("link created")

		assert.Equal(t, StatusSuccess, resp.Status)
		assert.Equal(t, "link created", resp.Message)
		assert.Nil(t, resp.Data)
	})

	t.Run("with data", func(t *testing.T) {
		data := map[string]string{"code": "abc123"}

		resp := SuccessResponse("link created", data)

		assert.Equal(t, StatusSuccess, resp.Status)
		assert.Equal(t, "link created", resp.Message)
		assert.Equal(t, data, resp.Data)
	})
}

func TestValidationErrorResponse(t *testing.T) {
	t.Run("non-validation error", func(t *testing.T) {
		resp := ValidationErrorResponse(assert.AnError)

		assert.Equal(t, StatusError, resp.Status)
		assert.Equal(t, "Validation Error", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation errors produce details", func(t *testing.T) {
		type request struct {
			URL string `validate:"required,url"`
		}

		err := validator.New().Struct(request{URL: "not a url"})

		resp := ValidationErrorResponse(err)

		assert.Equal(t, StatusError, resp.Status)
		assert.Equal(t, "Validation Error", resp.Error)
		assert.Len(t, resp.Details, 1)
		assert.Equal(t, map[string]string{"field": "URL", "rule": "url"}, resp.Details[0])
	})
}
