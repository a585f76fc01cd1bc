package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inner struct {
	Direction string `json:"direction" validate:"omitempty,oneof=LONG SHORT"`
}

type sample struct {
	Name  string `json:"name" validate:"required,max=4"`
	Limit int    `json:"limit" default:"10" validate:"gte=1"`
	Read  inner  `json:"read"`
}

func bind(t *testing.T, body string) interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	return ReadAndValidateRequest(c, &sample{})
}

func TestReadAndValidateRequest(t *testing.T) {
	assert.Nil(t, bind(t, `{"name":"ab"}`))

	errs, ok := bind(t, `{"name":"abcdef","read":{"direction":"UP"}}`).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_MAX", errs[0].Code)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "name must be at most 4 characters", errs[0].Message)
	assert.Equal(t, "read.direction", errs[1].Field)
	assert.Equal(t, []string{"LONG", "SHORT"}, errs[1].Params["options"])

	errs = bind(t, `{broken`).([]ValidationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED", errs[0].Code)
}

func TestValidateOutsideRequest(t *testing.T) {
	assert.Error(t, Validate(context.Background(), &sample{Limit: 1}))
	assert.NoError(t, Validate(context.Background(), &sample{Name: "x", Limit: 1}))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "ERR_NOT_FOUND", NotFoundError("x").Code)
	assert.Equal(t, "ERR_TOO_MANY_REQUESTS", StatusError(http.StatusTooManyRequests, "x").Code)
	assert.Equal(t, "ERR_UNKNOWN", StatusError(599, "x").Code)

	cause := errors.New("disk")
	err := InternalError("failed").WithError(cause).WithParam("op", "save")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed: disk", err.Error())
	assert.Equal(t, "save", err.Params["op"])
}

func TestAppErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INTERNAL_SERVER_ERROR")
	assert.NotContains(t, rec.Body.String(), "plain")
}
