// Package hours normalizes the weekly schedules published by the SBAT portal.
//
// Agencies list business and intake hours either as a small day/time table or as free
// text ("Mon-Fri 9:00am-5:00pm", "Sat: Closed"). Both forms are reduced to a Week of
// seven open/close pairs so every CSV row carries the same fourteen hour columns.
package hours
