// Package target provides the embedded catalog of supported chips.
//
// Each Target names the toolchain used to build for it and the address
// windows the exception decoder relies on:
//
//	db, err := target.Load()
//	t, ok := db.Get("esp8266")
//	cfg := decoder.DefaultConfig()
//	cfg.Code = t.CodeRange()
//
// The catalog lives in targets.yaml and is compiled into the binary.
package target
