//go:build (!amd64 && !arm64) || purego

package celp

// Only the portable kernel is used on this platform.
