/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/

// Command libstdf2h5 is built with -buildmode=c-shared and exports the
// converter to C callers:
//
//	uintptr_t NewStdf(void);
//	void      DeleteStdf(uintptr_t h);
//	bool      ParserStdfToHdf5(uintptr_t h, const wchar_t *path);
//	int       GetFinishT(uintptr_t h);
//
// A handle is valid from NewStdf until DeleteStdf. Calls on one handle must
// not overlap. Unknown or deleted handles are ignored: ParserStdfToHdf5
// returns false and GetFinishT returns 0.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <wchar.h>
*/
import "C"

import (
	"log/slog"
	"os"
	"unsafe"

	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

var opts = optionsFromEnv(os.Getenv, os.Stderr)

//export NewStdf
func NewStdf() C.uintptr_t {
	return C.uintptr_t(handles.add(converter.New(opts)))
}

//export DeleteStdf
func DeleteStdf(h C.uintptr_t) {
	if c, ok := handles.remove(uintptr(h)); ok {
		c.Clear()
	}
}

//export ParserStdfToHdf5
func ParserStdfToHdf5(h C.uintptr_t, path *C.wchar_t) (ok C.bool) {
	defer func() {
		if r := recover(); r != nil {
			opts.Logger.Info("boundaryPanic", slog.Any("panic", r))
			ok = false
		}
	}()

	c, found := handles.get(uintptr(h))
	if !found {
		opts.Logger.Info("invalidHandle", slog.Uint64("handle", uint64(h)))
		return false
	}
	res := c.ParserStdfToHdf5(goPath(path))
	if !res.Success {
		opts.Logger.Info("parserStdfToHdf5Failed",
			slog.String("diagnostic", res.Diagnostic), slog.String("errClass", res.Class))
	}
	return C.bool(res.Success)
}

//export GetFinishT
func GetFinishT(h C.uintptr_t) C.int {
	c, found := handles.get(uintptr(h))
	if !found {
		return 0
	}
	return C.int(c.GetFinishT())
}

// goPath converts a NUL-terminated wchar_t string. wchar_t is UTF-16 on
// Windows and UTF-32 elsewhere.
func goPath(p *C.wchar_t) string {
	if p == nil {
		return ""
	}
	n := int(C.wcslen(p))
	if C.sizeof_wchar_t == 2 {
		return converter.DecodeUTF16(unsafe.Slice((*uint16)(unsafe.Pointer(p)), n))
	}
	return converter.DecodeUTF32(unsafe.Slice((*uint32)(unsafe.Pointer(p)), n))
}

func main() {}
