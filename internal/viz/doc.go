// Package viz renders runs in the terminal.
//
// [Plot] draws a finished run as an ASCII chart. [Dashboard] is a Bubble Tea
// program that reruns the experiment whenever a setting changes:
//
//	↑/↓  select a setting
//	←/→  adjust it by one step
//	o    toggle the aperture for the whole run
//	r    restore the preset
//	q    quit
package viz
