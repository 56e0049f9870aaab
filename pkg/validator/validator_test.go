package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Count int    `json:"count" validate:"min=1"`
}

func TestValidateStructPasses(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "ok", Count: 1}))
}

func TestValidateStructCollectsFailures(t *testing.T) {
	err := ValidateStruct(sample{Name: "toolongname"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "name", failures[0].Field)
	require.Contains(t, err.Error(), "name failed on max=5")
}
