package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafe(t *testing.T) {
	errBoom := errors.New("boom")

	assert.NoError(t, Safe(func() error { return nil })())
	assert.ErrorIs(t, Safe(func() error { return errBoom })(), errBoom)

	err := Safe(func() error { panic("watcher exploded") })()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watcher exploded")
}

func TestSafeContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SafeContext(func(ctx context.Context) error { return ctx.Err() })(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	err = SafeContext(func(context.Context) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assignment to entry in nil map")
}
