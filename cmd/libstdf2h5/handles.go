package main

import (
	"runtime/cgo"
	"sync"

	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// handleTable tracks the converters owned by C callers. Handles are looked up
// here before runtime/cgo resolves them, so a stale or foreign value is
// rejected instead of panicking.
type handleTable struct {
	live sync.Map // cgo.Handle -> *converter.Converter
}

var handles handleTable

func (t *handleTable) add(c *converter.Converter) uintptr {
	h := cgo.NewHandle(c)
	t.live.Store(h, c)
	return uintptr(h)
}

func (t *handleTable) get(h uintptr) (*converter.Converter, bool) {
	v, ok := t.live.Load(cgo.Handle(h))
	if !ok {
		return nil, false
	}
	return v.(*converter.Converter), true
}

// remove forgets h and releases it. It reports false for unknown handles.
func (t *handleTable) remove(h uintptr) (*converter.Converter, bool) {
	v, ok := t.live.LoadAndDelete(cgo.Handle(h))
	if !ok {
		return nil, false
	}
	cgo.Handle(h).Delete()
	return v.(*converter.Converter), true
}
