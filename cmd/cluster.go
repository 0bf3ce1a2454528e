package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcc/jvm-tools/internal/heap/cluster"
	"github.com/0xcc/jvm-tools/internal/heap/model"
	"github.com/0xcc/jvm-tools/internal/heap/report"
	"github.com/0xcc/jvm-tools/internal/heap/snapshot"
	"github.com/0xcc/jvm-tools/internal/heap/tui"
)

var clusterOpts struct {
	entryPoints    []string
	blacklists     []string
	tokens         []string
	depth          int
	bfs            bool
	keepMembership bool
	shared         bool
	top            int
	interactive    bool
	ignoreFile     string
	sharedFile     string
}

var clusterCmd = &cobra.Command{
	Use:   "cluster [snapshot-file]",
	Short: "Build retained clusters for configured root types",
	Long: `Builds a retained-memory cluster for every object whose class matches a
configured entry point, and reports memory shared between clusters.

Entry points are path expressions starting with a type filter, e.g.
  jvmtool cluster heap.json -e '(**.SessionImpl)' -e '(**.CacheRegion).entries[*]'`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func runCluster(cmd *cobra.Command, args []string) error {
	if len(clusterOpts.entryPoints) == 0 {
		return fmt.Errorf("at least one --entry is required")
	}

	heap, err := snapshot.LoadFile(args[0])
	if err != nil {
		return err
	}

	analyzer := cluster.New(heap)
	analyzer.SetGraphDepthThreshold(clusterOpts.depth)
	if clusterOpts.bfs {
		analyzer.UseBreadthSearch()
	}
	analyzer.KeepClusterMembership(clusterOpts.keepMembership)

	for _, ep := range clusterOpts.entryPoints {
		if err := analyzer.AddEntryPoint(ep); err != nil {
			return err
		}
	}
	for _, bl := range clusterOpts.blacklists {
		if err := analyzer.Blacklist(bl); err != nil {
			return err
		}
	}
	for _, tok := range clusterOpts.tokens {
		analyzer.AddBlacklistToken(tok)
	}

	if clusterOpts.ignoreFile != "" {
		if err := seedIDs(clusterOpts.ignoreFile, analyzer.MarkIgnored); err != nil {
			return err
		}
	}
	if clusterOpts.sharedFile != "" {
		if err := seedIDs(clusterOpts.sharedFile, analyzer.MarkShared); err != nil {
			return err
		}
	}

	analyzer.Prepare()

	for _, inst := range heap.Instances() {
		if _, err := analyzer.Feed(inst); err != nil {
			return fmt.Errorf("analysis failed at object %d: %w", inst.ID, err)
		}
	}

	if clusterOpts.shared {
		// Second pass once the shared set is complete.
		for _, c := range analyzer.Clusters() {
			if err := analyzer.AccountShared(c); err != nil {
				return fmt.Errorf("shared accounting failed for cluster root %d: %w", c.Root.ID, err)
			}
		}
	}

	if clusterOpts.interactive {
		return tui.Run(analyzer)
	}

	fmt.Print(report.RenderRun(analyzer, report.Options{Top: clusterOpts.top}))
	return nil
}

// seedIDs reads one decimal object identity per line and feeds each to mark.
func seedIDs(path string, mark func(model.ID)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open id file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: invalid object id %q", path, line, text)
		}
		mark(model.ID(id))
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().StringArrayVarP(&clusterOpts.entryPoints, "entry", "e", nil, "entry point path, must start with a type filter (repeatable)")
	clusterCmd.Flags().StringArrayVarP(&clusterOpts.blacklists, "blacklist", "b", nil, "blacklist rule: type filter, optionally with one field (repeatable)")
	clusterCmd.Flags().StringArrayVar(&clusterOpts.tokens, "token", nil, "literal blacklist token: Class, Class#field or Class[*] (repeatable)")
	clusterCmd.Flags().IntVar(&clusterOpts.depth, "depth", cluster.DefaultDepthThreshold, "maximum field-hop distance from an entry point")
	clusterCmd.Flags().BoolVar(&clusterOpts.bfs, "bfs", false, "use breadth-first traversal")
	clusterCmd.Flags().BoolVar(&clusterOpts.keepMembership, "keep-membership", false, "retain every cluster's full membership set")
	clusterCmd.Flags().BoolVar(&clusterOpts.shared, "shared", false, "account each cluster's shared subset")
	clusterCmd.Flags().IntVar(&clusterOpts.top, "top", 20, "limit histograms to the N largest classes, 0 for all")
	clusterCmd.Flags().BoolVarP(&clusterOpts.interactive, "tui", "t", false, "browse results interactively")
	clusterCmd.Flags().StringVar(&clusterOpts.ignoreFile, "ignore-ids", "", "file with object ids to exclude from traversal, one per line")
	clusterCmd.Flags().StringVar(&clusterOpts.sharedFile, "shared-ids", "", "file with object ids known to be shared, one per line")
}
