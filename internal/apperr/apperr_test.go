package apperr

import (
	"errors"
	"fmt"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindInternal},
		{"validation", Validation("title is required"), KindValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("event not found")), KindNotFound},
		{"conflict", Conflict(CodeCapacityExceeded, "event is full"), KindConflict},
		{"unauthorized", Unauthorized("not a manager"), KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestCodeAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "load event")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "load event: connection reset", err.Error())

	c := Unauthorized("wrong pin").WithCode(CodePINMismatch)
	assert.Equal(t, CodePINMismatch, CodeOf(fmt.Errorf("register: %w", c)))
	assert.Equal(t, Code(""), CodeOf(errors.New("x")))
	assert.True(t, Is(c, KindUnauthorized))
}

func TestFromValidation(t *testing.T) {
	assert.NoError(t, FromValidation(nil))

	err := FromValidation(validation.Errors{"title": errors.New("cannot be blank")})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "title")
}
