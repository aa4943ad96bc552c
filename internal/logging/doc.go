// Package logging builds the zerolog logger shared by the yeet components.
//
// Components accept a zerolog.Logger in their options and default to
// zerolog.Nop() so library use stays silent.
package logging
