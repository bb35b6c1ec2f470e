//go:build pic

package startup

// PositionIndependent is set for images built with -tags pic.  Such images
// carry a GOT and relocation records and are fixed up at start.
const PositionIndependent = true
