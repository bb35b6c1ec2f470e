//go:build !pic

package startup

const PositionIndependent = false
