// Package logging builds the slog logger used across Cleanarr. Console
// output is a compact single-line format with a component prefix; JSON
// output is the standard slog JSON handler with normalized keys.
package logging
