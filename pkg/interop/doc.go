// Package interop converts text that crosses the host boundary into owned Go
// strings.
//
// Hosts hand out names as either UTF-8 or UTF-16LE buffers (the latter on
// platforms where the native character type is wide). Nothing decoded by this
// package aliases the source buffer: every result is a fresh copy whose
// lifetime is independent of the host.
//
// # Wire form
//
// Text is the JSON representation used by the JSON-RPC transport. It accepts
// a plain JSON string (UTF-8) or an encoded buffer:
//
//	"App.Animal"
//	{"encoding": "utf-16le", "data": "QQBwAHAALgBBAG4AaQBtAGEAbAA="}
package interop
