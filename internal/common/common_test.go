package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var errKind = NewAppError("thing_failed", "thing failed", 409, nil)

func TestWrapKeepsKind(t *testing.T) {
	cause := errors.New("backend down")
	err := fmt.Errorf("outer: %w", Wrap(errKind, cause))

	require.True(t, errors.Is(err, errKind))
	require.True(t, errors.Is(err, cause))
	require.Equal(t, "thing_failed", CodeOf(err))
	require.Equal(t, "outer: thing failed: backend down", err.Error())
	require.Nil(t, errKind.Err)
}

func TestIsDoesNotMatchOtherCodes(t *testing.T) {
	other := NewAppError("other", "other", 400, nil)
	require.False(t, errors.Is(errKind, other))
	require.Empty(t, CodeOf(errors.New("plain")))
	require.False(t, IsAppError(errors.New("plain")))
}

func TestRowKeyIgnoresOptionOrder(t *testing.T) {
	a := RowKey("sku-1", map[string]string{"size": "L", "color": "red"})
	b := RowKey("sku-1", map[string]string{"color": "red", "size": "L"})
	require.Equal(t, a, b)
	require.Len(t, a, 32)
	require.NotEqual(t, a, RowKey("sku-1", nil))
	require.NotEqual(t, a, RowKey("sku-2", map[string]string{"size": "L", "color": "red"}))
}
