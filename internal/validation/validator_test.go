package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

type spotRequest struct {
	Name      string   `json:"name" validate:"notblank,max=10"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Period    string   `json:"time_period" validate:"omitempty,oneof=all recent"`
}

func ptr(f float64) *float64 { return &f }

func TestStructOK(t *testing.T) {
	req := spotRequest{Name: "Pond", Latitude: ptr(40), Longitude: ptr(-73), Period: "recent"}
	assert.NoError(t, Struct(&req))
}

func TestStructUsesJSONNames(t *testing.T) {
	req := spotRequest{Name: "  ", Latitude: ptr(91), Period: "week"}

	err := Struct(&req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidParameters))

	var fe *common.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "is required", fe.Fields["name"])
	assert.Equal(t, "must be between -90 and 90", fe.Fields["latitude"])
	assert.Equal(t, "is required", fe.Fields["longitude"])
	assert.Equal(t, "must be one of: all recent", fe.Fields["time_period"])
}

func TestStructZeroCoordinateIsPresent(t *testing.T) {
	req := spotRequest{Name: "Equator", Latitude: ptr(0), Longitude: ptr(0)}
	assert.NoError(t, Struct(&req))
}

func TestStructMaxLength(t *testing.T) {
	req := spotRequest{Name: "a very long spot name", Latitude: ptr(1), Longitude: ptr(1)}
	var fe *common.FieldError
	require.True(t, errors.As(Struct(&req), &fe))
	assert.Equal(t, "must be at most 10 characters", fe.Fields["name"])
}
