package callbridge

import (
	"fmt"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
)

// bindArgs binds parameters in the host's order — positional, then
// keyword, then defaults, then *args, then **kwargs — producing the
// local-variable register prefix a fresh frame.Frame starts with.
//
// args is already an owned slice (each element increfed by the caller,
// execCall.takeArgs) whose ownership transfers here: every element ends
// up in exactly one place — a named local, the *args tuple, or released
// on a binding failure. kwargs is borrowed (it is the still-live KindDict
// register CALL_FN_KW/CALL_FN_VAR_KW built); any value bound from it, or
// folded into an overflow **kwargs dict, is increfed before being kept
// past this function.
func bindArgs(fn *hostrt.FuncObject, args []hostrt.H, kwargs *hostrt.OrderedDict, host ops.Host) ([]hostrt.H, error) {
	co := fn.Code
	nparams := co.ArgCount
	locals := make([]hostrt.H, co.NumLocals())
	bound := make([]bool, nparams)
	var overflowKw *hostrt.OrderedDict

	// abort releases everything this call has taken ownership of so far
	// (bound locals, the unused positional tail, the overflow kwargs
	// dict) and reports msg as a binding failure.
	abort := func(extra []hostrt.H, msg string) ([]hostrt.H, error) {
		for _, v := range locals {
			if v != nil {
				host.Decref(v)
			}
		}
		releaseAll(host, extra)
		if overflowKw != nil {
			overflowKw.Each(func(k, v hostrt.H) {
				host.Decref(k)
				host.Decref(v)
			})
		}
		return nil, fmt.Errorf("%s", msg)
	}

	take := len(args)
	if take > nparams {
		take = nparams
	}
	for i := 0; i < take; i++ {
		locals[i] = args[i]
		bound[i] = true
	}
	extra := args[take:]

	if len(extra) > 0 && !co.HasVarargs() {
		return abort(extra, fmt.Sprintf("%s() takes %d positional argument(s) but %d were given", displayName(fn), nparams, len(args)))
	}

	var rejected string
	if kwargs != nil {
		kwargs.Each(func(k, v hostrt.H) {
			if rejected != "" {
				return
			}
			idx := paramIndex(co.Varnames, nparams, k.Str)
			if idx >= 0 && !bound[idx] {
				host.Incref(v)
				locals[idx] = v
				bound[idx] = true
				return
			}
			if co.HasVarKwargs() {
				if overflowKw == nil {
					overflowKw = hostrt.NewOrderedDict()
				}
				host.Incref(k)
				host.Incref(v)
				overflowKw.Set(k, v)
				return
			}
			rejected = k.Str
		})
	}
	if rejected != "" {
		return abort(extra, fmt.Sprintf("%s() got an unexpected or duplicate keyword argument %q", displayName(fn), rejected))
	}

	firstDefault := nparams - co.DefaultCount
	for i := firstDefault; i < nparams; i++ {
		if i < 0 || bound[i] {
			continue
		}
		d := fn.Defaults[i-firstDefault]
		host.Incref(d)
		locals[i] = d
		bound[i] = true
	}

	for i := 0; i < nparams; i++ {
		if !bound[i] {
			return abort(extra, fmt.Sprintf("%s() missing required positional argument: %q", displayName(fn), co.Varnames[i]))
		}
	}

	idx := nparams
	if co.HasVarargs() {
		locals[idx] = hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindTuple, Items: extra})
		idx++
	}
	if co.HasVarKwargs() {
		if overflowKw == nil {
			overflowKw = hostrt.NewOrderedDict()
		}
		locals[idx] = hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindDict, Dict: overflowKw})
	}

	return locals, nil
}

func releaseAll(host ops.Host, items []hostrt.H) {
	for _, v := range items {
		host.Decref(v)
	}
}

func paramIndex(varnames []string, nparams int, name string) int {
	for i := 0; i < nparams && i < len(varnames); i++ {
		if varnames[i] == name {
			return i
		}
	}
	return -1
}

func displayName(fn *hostrt.FuncObject) string {
	if fn.Name != "" {
		return fn.Name
	}
	return "<function>"
}
