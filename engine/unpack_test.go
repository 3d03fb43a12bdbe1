package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

func TestUnpackFirstReturnsLeadingElement(t *testing.T) {
	result := runFixture(t, "unpack.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	require.Equal(t, int64(1), result.Int.Int64())
}

// unpack_mismatch.src has no "main" function, so it can't go through
// runFixture (which always asserts success) — UNPACK_SEQUENCE on a
// shape mismatch is expected to fail.
func TestUnpackMismatchRaisesValueError(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "unpack_mismatch.src"))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	_, err = eng.Run(fn, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "values to unpack")
}
