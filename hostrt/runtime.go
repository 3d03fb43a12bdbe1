package hostrt

// Runtime is the reference embedding host: reference counting plus the
// pending-error channel. It implements every part of ops.Host except
// Call and ResumeGenerator, which depend on the Compiler/Evaluator and so
// cannot be imported here without an import cycle (hostrt sits below
// compiler/frame/evaluator in the dependency graph). callbridge.Bridge
// embeds a *Runtime and supplies those two itself.
type Runtime struct {
	pending    pendingErr
	hasPending bool
}

type pendingErr struct {
	kind  int
	class string
	value H
}

// NewRuntime returns an empty Runtime with no error in flight.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) Incref(h H) { Incref(h) }
func (rt *Runtime) Decref(h H) { Decref(h) }

// SetError records kind/class/value in the ops-layer error channel.
// kind is
// stored as an int to avoid hostrt importing package ops (which itself
// imports hostrt); callbridge.Bridge reconstructs the ops.ErrKind on the
// way out — see callbridge/callbridge.go.
func (rt *Runtime) SetError(kind int, class string, value H) {
	rt.pending = pendingErr{kind: kind, class: class, value: value}
	rt.hasPending = true
}

func (rt *Runtime) ClearError() {
	rt.pending = pendingErr{}
	rt.hasPending = false
}

// PendingErrorRaw returns the last SetError call's arguments, for
// callbridge.Bridge to translate into an ops.PendingError.
func (rt *Runtime) PendingErrorRaw() (kind int, class string, value H, ok bool) {
	if !rt.hasPending {
		return 0, "", nil, false
	}
	return rt.pending.kind, rt.pending.class, rt.pending.value, true
}
