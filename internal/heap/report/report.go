// Package report renders cluster analysis results for terminal output.
package report

import (
	"fmt"
	"strings"

	"github.com/0xcc/jvm-tools/internal/heap/cluster"
	"github.com/0xcc/jvm-tools/utils"
)

// Options controls report rendering.
type Options struct {
	// Top limits each histogram to its N largest classes; 0 means all.
	Top int
}

// RenderRun renders every retained cluster followed by the global shared
// summary and error margin.
func RenderRun(a *cluster.Analyzer, opts Options) string {
	var sb strings.Builder
	for n, c := range a.Clusters() {
		sb.WriteString(RenderCluster(n+1, c, opts))
		sb.WriteByte('\n')
	}

	shared := a.SharedSummary()
	if shared.TotalCount() > 0 {
		sb.WriteString(utils.TitleStyle.Render("Shared between clusters"))
		sb.WriteByte('\n')
		sb.WriteString(renderHistogram(shared, opts.Top))
	}
	sb.WriteString(utils.MutedStyle.Render(
		fmt.Sprintf("shared error margin: %s", utils.MemorySize(a.SharedErrorMargin()))))
	sb.WriteByte('\n')
	return sb.String()
}

// RenderCluster renders one cluster: header line and per-class histogram.
func RenderCluster(n int, c *cluster.Cluster, opts Options) string {
	var sb strings.Builder
	header := fmt.Sprintf("Cluster #%d  %s @%d  %d objects, %s",
		n, c.Root.Class.Name, c.Root.ID, c.Count(), utils.MemorySize(c.Size()))
	sb.WriteString(utils.TitleStyle.Render(header))
	sb.WriteByte('\n')
	sb.WriteString(renderHistogram(c.Summary, opts.Top))

	if c.SharedSummary != nil && c.SharedSummary.TotalCount() > 0 {
		sb.WriteString(utils.WarningStyle.Render(fmt.Sprintf("  shared subset: %d objects, %s",
			c.SharedSummary.TotalCount(), utils.MemorySize(c.SharedSummary.TotalSize()))))
		sb.WriteByte('\n')
		sb.WriteString(renderHistogram(c.SharedSummary, opts.Top))
	}
	return sb.String()
}

func renderHistogram(h *cluster.Histogram, top int) string {
	var sb strings.Builder
	sb.WriteString(utils.HeaderStyle.Render(fmt.Sprintf("  %-52s %10s %10s", "CLASS", "COUNT", "SIZE")))
	sb.WriteByte('\n')
	for i, e := range h.Entries() {
		if top > 0 && i == top {
			sb.WriteString(utils.MutedStyle.Render(fmt.Sprintf("  ... %d more classes", len(h.Entries())-top)))
			sb.WriteByte('\n')
			break
		}
		sb.WriteString(fmt.Sprintf("  %-52s %10d %10s\n",
			trimClass(e.ClassName, 52), e.Count, utils.MemorySize(e.TotalSize)))
	}
	sb.WriteString(utils.MutedStyle.Render(fmt.Sprintf("  %-52s %10d %10s", "total", h.TotalCount(), utils.MemorySize(h.TotalSize()))))
	sb.WriteByte('\n')
	return sb.String()
}

// trimClass shortens a fully-qualified class name from the left so the
// significant trailing part stays visible.
func trimClass(name string, width int) string {
	if len(name) <= width {
		return name
	}
	return "..." + name[len(name)-width+3:]
}
