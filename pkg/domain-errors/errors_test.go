package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	base := MissingField("celk_trzba")
	wrapped := fmt.Errorf("render body: %w", base)

	assert.True(t, HasCode(wrapped, CodeMissingRequiredField))
	assert.False(t, HasCode(wrapped, CodeInvalidField))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestNumbers(t *testing.T) {
	assert.Equal(t, 701, NumberOf(MissingField("dic_popl")))
	assert.Equal(t, 301, NumberOf(New(CodeInvalidInput, "nil receipt")))
	assert.Equal(t, 203, CodeConfig.Number())
	assert.Equal(t, 0, NumberOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodeTransport, "submit receipt")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport: submit receipt")

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeTransport, code)
}

func TestMissingFieldCarriesField(t *testing.T) {
	err := MissingField("porad_cis")
	assert.Equal(t, "porad_cis", err.Field)
	assert.True(t, Is(err, CodeMissingRequiredField))
}
