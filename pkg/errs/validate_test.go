package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleStruct struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"gte=0,lte=130"`
}

func TestValidatePassesAValidStruct(t *testing.T) {
	s := sampleStruct{Name: "ada", Age: 30}
	assert.NoError(t, Validate(s))
}

func TestValidateRejectsAMissingRequiredField(t *testing.T) {
	s := sampleStruct{Age: 30}
	err := Validate(s)
	a := assert.New(t)
	a.Error(err)

	var e *Error
	a.ErrorAs(err, &e)
	a.Equal(KindSync, e.Kind)
}

func TestValidateRejectsAnOutOfRangeField(t *testing.T) {
	s := sampleStruct{Name: "ada", Age: 200}
	assert.Error(t, Validate(s))
}
