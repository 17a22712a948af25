// Package tui renders seda stage statistics in the terminal.
//
// [RenderStats] produces a one-shot lipgloss table. [Model] is a bubbletea
// program that polls a [StatsFunc] and redraws the same columns live; [Run]
// starts it in the alternate screen.
package tui
