package engine_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

// TestFrameReleasesRegisterFileOnCompletion exercises register-file
// hygiene directly: identity.src's sole
// function stores its one argument straight into a register and
// returns it unchanged, so every reference the completed Frame held
// is accounted for by the two explicit increfs its caller can see
// (frame/frame.go's Release, called by callbridge.Bridge once a Frame
// is done, is what is under test here).
func TestFrameReleasesRegisterFileOnCompletion(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "identity.src"))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	arg := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindInt, Int: big.NewInt(42)})
	require.EqualValues(t, 1, hostrt.LiveRefs(arg))

	result, err := eng.Run(fn, []hostrt.H{arg}, nil)
	require.NoError(t, err)
	require.Same(t, arg, result)
	// One ref for the caller's original arg, one for the returned value
	// Run handed back — nothing left over belonging to the Frame itself.
	require.EqualValues(t, 2, hostrt.LiveRefs(arg))

	eng.Bridge().Decref(result)
	require.EqualValues(t, 1, hostrt.LiveRefs(arg))
}
