package result_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/result"
)

func TestOkAndFail(t *testing.T) {
	ok := result.Ok(5)
	v, isOk := ok.Value()
	assert.True(t, isOk)
	assert.Equal(t, 5, v)
	assert.NoError(t, ok.Err())
	assert.Empty(t, ok.Code())

	failed := result.FromError[int](errx.New("no player",
		errx.WithCode("PLAYER_NOT_FOUND"),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"player_id": "42"}),
	))
	assert.True(t, failed.IsFail())
	assert.Equal(t, "PLAYER_NOT_FOUND", failed.Code())
	assert.Equal(t, errx.T_NotFound.String(), failed.Failure().Type)
	assert.Equal(t, "42", failed.Failure().Details["player_id"])
	assert.Contains(t, failed.Failure().Message, "no player")
	require.Error(t, failed.Err())
	assert.Equal(t, "PLAYER_NOT_FOUND", errx.AsErrorX(failed.Err()).Code())
}

func TestZeroResultIsFailure(t *testing.T) {
	var r result.Result[string]
	assert.True(t, r.IsFail())
	assert.Equal(t, result.CodeInternal, r.Code())
}

func TestFromPlainError(t *testing.T) {
	r := result.FromError[int](errors.New("boom"))
	assert.True(t, r.IsFail())
	assert.NotEmpty(t, r.Code())
	assert.Contains(t, r.Failure().Message, "boom")
}

func TestFailureRoundTrip(t *testing.T) {
	first := result.Fail[int](result.Failure{Code: "NO_HANDLER", Message: "missing"})
	second := result.FromError[string](first.Failure())
	assert.Equal(t, "NO_HANDLER", second.Code())
}

func TestCombinators(t *testing.T) {
	tests := []struct {
		name string
		in   result.Result[int]
		want string
	}{
		{name: "ok maps", in: result.Ok(21), want: "42"},
		{name: "failure passes through", in: result.Fail[int](result.Failure{Code: "X"}), want: "failed:X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doubled := result.Map(tt.in, func(v int) int { return v * 2 })
			asText := result.Bind(doubled, func(v int) result.Result[string] {
				return result.Ok(strconv.Itoa(v))
			})
			got := result.Match(asText,
				func(s string) string { return s },
				func(f result.Failure) string { return "failed:" + f.Code },
			)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 7, result.OrElse(result.Fail[int](result.Failure{Code: "X"}), 7))
	assert.Equal(t, 1, result.OrElse(result.Ok(1), 7))
}

func TestOf(t *testing.T) {
	assert.True(t, result.Of(1, nil).IsOk())
	assert.True(t, result.Of(1, errors.New("x")).IsFail())
}
