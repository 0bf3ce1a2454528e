package tui

import (
	"fmt"
	"strings"

	"github.com/0xcc/jvm-tools/internal/heap/cluster"
	"github.com/0xcc/jvm-tools/utils"
)

const (
	MinBarWidth   = 10
	LabelWidth    = 36
	SizeColWidth  = 10
	CountColWidth = 8
)

// RenderBars draws a horizontal bar per class, scaled to the largest class
// in the histogram.
func RenderBars(h *cluster.Histogram, top, width int) string {
	entries := h.Entries()
	if len(entries) == 0 {
		return utils.MutedStyle.Render("no data")
	}
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}

	barWidth := width - LabelWidth - SizeColWidth - CountColWidth - 4
	if barWidth < MinBarWidth {
		barWidth = MinBarWidth
	}
	maxSize := entries[0].TotalSize

	var sb strings.Builder
	for _, e := range entries {
		filled := 0
		if maxSize > 0 {
			filled = int(int64(barWidth) * e.TotalSize / maxSize)
		}
		if filled == 0 && e.TotalSize > 0 {
			filled = 1
		}
		bar := utils.InfoStyle.Render(strings.Repeat("█", filled)) +
			utils.MutedStyle.Render(strings.Repeat("░", barWidth-filled))
		sb.WriteString(fmt.Sprintf("%-*s %s %*s %*d\n",
			LabelWidth, shortLabel(e.ClassName, LabelWidth),
			bar,
			SizeColWidth, utils.MemorySize(e.TotalSize),
			CountColWidth, e.Count))
	}
	return sb.String()
}

func shortLabel(name string, width int) string {
	if len(name) <= width {
		return name
	}
	if c := strings.LastIndexByte(name, '.'); c >= 0 && len(name)-c-1 <= width-2 {
		return "*." + name[c+1:]
	}
	return name[:width-1] + "…"
}
