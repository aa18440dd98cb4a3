package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/ops"
	"github.com/sadopc/godudb/internal/remote"
	"github.com/sadopc/godudb/internal/store"
	"github.com/sadopc/godudb/internal/ui/components"
	"github.com/sadopc/godudb/internal/ui/style"
	"github.com/sadopc/godudb/internal/util"
)

const (
	timeLayout     = "2006-01-02 15:04:05"
	breakdownWidth = 80
	importRunner   = "import"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				scans, err := a.controller(st).ListScans(ctx)
				if err != nil {
					return err
				}
				if len(scans) == 0 {
					fmt.Fprintln(a.stdout, "No scans found. Run 'godudb scan <path>' to create one.")
					return nil
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tFILES\tDIRS\tSIZE\tROOT")
				for _, s := range scans {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
						s.ID, s.Status, s.StartedAt.Local().Format(timeLayout),
						s.TotalFiles, s.TotalDirs, util.FormatSize(s.TotalSize), s.RootPath)
				}
				return tw.Flush()
			})
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var (
		top       int
		sortField string
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a scan's details, largest entries and file types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			field, err := model.ParseSortField(sortField)
			if err != nil {
				return err
			}
			if top < 0 {
				return fmt.Errorf("--top must be >= 0")
			}

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				scan, err := st.GetScan(ctx, id)
				if err != nil {
					return err
				}
				writeScanDetails(a.stdout, scan)

				largest, err := st.LargestEntries(ctx, id, top+1)
				if err != nil {
					return err
				}
				writeLargest(a.stdout, largest, top, field)

				entries, err := st.Entries(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "\nFile types:")
				fmt.Fprintln(a.stdout, components.RenderBreakdown(style.DefaultTheme(), model.BreakdownByCategory(entries), breakdownWidth))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "number of largest entries to list")
	cmd.Flags().StringVar(&sortField, "sort", "size", "order of the largest entries: size, name or mtime")
	return cmd
}

func writeScanDetails(w io.Writer, s model.Scan) {
	fmt.Fprintf(w, "Scan ID:     %d\n", s.ID)
	fmt.Fprintf(w, "Root path:   %s\n", s.RootPath)
	fmt.Fprintf(w, "Status:      %s\n", s.Status)
	fmt.Fprintf(w, "Started:     %s\n", s.StartedAt.Local().Format(timeLayout))
	if s.CompletedAt != nil {
		fmt.Fprintf(w, "Completed:   %s (%s)\n", s.CompletedAt.Local().Format(timeLayout),
			s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Files:       %d\n", s.TotalFiles)
	fmt.Fprintf(w, "Directories: %d\n", s.TotalDirs)
	fmt.Fprintf(w, "Total size:  %s\n", util.FormatSize(s.TotalSize))
	if s.Status.Resumable() {
		fmt.Fprintf(w, "\nResume with: godudb resume %d\n", s.ID)
	}
}

// writeLargest lists up to top entries, leaving out the scan root which is
// always the largest.
func writeLargest(w io.Writer, entries []model.Entry, top int, field model.SortField) {
	shown := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsRoot() && len(shown) < top {
			shown = append(shown, e)
		}
	}
	if len(shown) == 0 {
		return
	}
	model.SortEntries(shown, model.SortFor(field))

	fmt.Fprintln(w, "\nLargest entries:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range shown {
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", util.FormatSize(e.Size), kind, e.Path)
	}
	_ = tw.Flush()
}

func newExportCmd(a *app) *cobra.Command {
	var (
		sortField string
		dirsFirst bool
	)
	cmd := &cobra.Command{
		Use:   "export <id> <file|->",
		Short: "Export a scan as ncdu-compatible JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			field, err := model.ParseSortField(sortField)
			if err != nil {
				return err
			}
			order := model.SortFor(field)
			order.DirsFirst = dirsFirst
			out := args[1]

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				tree, scan, err := loadTree(ctx, st, id, order)
				if err != nil {
					return err
				}
				if scan.Status != model.StatusCompleted {
					a.log.Warn("exporting an unfinished scan; incomplete directories are marked read_error",
						"scan", id, "status", scan.Status)
				}
				if err := ops.ExportJSON(tree, out, version); err != nil {
					return fmt.Errorf("export scan %d: %w", id, err)
				}
				if out != "-" {
					fmt.Fprintf(a.stdout, "Exported scan %d to %s\n", id, out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sortField, "sort", "size", "order of each directory's children: size, name or mtime")
	cmd.Flags().BoolVar(&dirsFirst, "dirs-first", false, "list directories before files")
	return cmd
}

// loadTree rebuilds a scan's tree from its persisted entries, with every
// directory's children in order.
func loadTree(ctx context.Context, st *store.Store, id int64, order model.SortConfig) (*model.DirNode, model.Scan, error) {
	scan, err := st.GetScan(ctx, id)
	if err != nil {
		return nil, model.Scan{}, err
	}
	root, err := treeRoot(scan)
	if err != nil {
		return nil, scan, err
	}
	entries, err := st.Entries(ctx, id)
	if err != nil {
		return nil, scan, err
	}
	tree, err := model.BuildTree(root, entries)
	if err != nil {
		return nil, scan, fmt.Errorf("rebuild scan %d: %w", id, err)
	}
	tree.Sort(order)
	return tree, scan, nil
}

// treeRoot is the path entries of scan are recorded under. Remote scans
// record their sftp:// location but store remote paths.
func treeRoot(scan model.Scan) (string, error) {
	if !remote.IsRemote(scan.RootPath) {
		return scan.RootPath, nil
	}
	t, err := remote.ParseTarget(scan.RootPath, 0)
	if err != nil {
		return "", err
	}
	return t.Path, nil
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store an ncdu-compatible JSON export as a completed scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := ops.ImportJSON(args[0])
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				id, err := importScan(ctx, st, imp, a.cfg.BatchSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Imported %s as scan %d (%d entries)\n", imp.Root, id, len(imp.Entries))
				return nil
			})
		},
	}
}

// importScan writes imp in batches and completes the record. A failed
// import leaves a failed record behind rather than a running one.
func importScan(ctx context.Context, st *store.Store, imp *ops.Imported, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = len(imp.Entries)
	}
	id, err := st.CreateScan(ctx, imp.Root, importRunner)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(imp.Entries); start += batchSize {
		end := min(start+batchSize, len(imp.Entries))
		if err := st.InsertEntries(ctx, id, imp.Entries[start:end]); err != nil {
			if failErr := st.FailScan(ctx, id); failErr != nil {
				err = fmt.Errorf("%w (marking scan failed: %v)", err, failErr)
			}
			return 0, err
		}
	}
	if err := st.CompleteScan(ctx, id, imp.Stats); err != nil {
		return 0, err
	}
	return id, nil
}

func newDiffCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "diff <id1> <id2>",
		Short: "Compare two scans",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id1, err := parseID(args[0])
			if err != nil {
				return err
			}
			id2, err := parseID(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				s1, err := st.GetScan(ctx, id1)
				if err != nil {
					return err
				}
				s2, err := st.GetScan(ctx, id2)
				if err != nil {
					return err
				}
				changes, err := diffRoots(ctx, st, s1, s2)
				if err != nil {
					return err
				}
				writeDiff(a.stdout, s1, s2, changes, top)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of changed top-level entries to list")
	return cmd
}

func diffRoots(ctx context.Context, st *store.Store, s1, s2 model.Scan) ([]ops.Change, error) {
	children := func(s model.Scan) ([]model.Entry, error) {
		root, err := treeRoot(s)
		if err != nil {
			return nil, err
		}
		return st.Children(ctx, s.ID, root)
	}
	before, err := children(s1)
	if err != nil {
		return nil, err
	}
	after, err := children(s2)
	if err != nil {
		return nil, err
	}
	return ops.DiffChildren(before, after), nil
}

func writeDiff(w io.Writer, s1, s2 model.Scan, changes []ops.Change, top int) {
	fmt.Fprintf(w, "Comparing scans %d and %d\n", s1.ID, s2.ID)
	for i, s := range []model.Scan{s1, s2} {
		fmt.Fprintf(w, "\nScan %d: %s (%s)\n", i+1, s.RootPath, s.Status)
		fmt.Fprintf(w, "  Date:  %s\n", s.StartedAt.Local().Format(timeLayout))
		fmt.Fprintf(w, "  Files: %d\n", s.TotalFiles)
		fmt.Fprintf(w, "  Size:  %s\n", util.FormatSize(s.TotalSize))
	}

	sizeDiff := s2.TotalSize - s1.TotalSize
	fmt.Fprintln(w, "\nDifferences:")
	fmt.Fprintf(w, "  Files: %+d\n", s2.TotalFiles-s1.TotalFiles)
	fmt.Fprintf(w, "  Dirs:  %+d\n", s2.TotalDirs-s1.TotalDirs)
	fmt.Fprintf(w, "  Size:  %s\n", util.FormatDelta(sizeDiff))
	switch {
	case sizeDiff > 0:
		fmt.Fprintln(w, "\n  Disk usage increased.")
	case sizeDiff < 0:
		fmt.Fprintln(w, "\n  Disk usage decreased.")
	default:
		fmt.Fprintln(w, "\n  No change in disk usage.")
	}

	if len(changes) == 0 || top <= 0 {
		return
	}
	fmt.Fprintln(w, "\nLargest changes:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range changes[:min(top, len(changes))] {
		note := ""
		switch {
		case c.Added:
			note = "new"
		case c.Removed:
			note = "removed"
		}
		name := c.Name
		if c.IsDir {
			name += "/"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", util.FormatDelta(c.Delta()), name, note)
	}
	_ = tw.Flush()
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scan and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				if err := a.controller(st).DeleteScan(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Deleted scan %d\n", id)
				return nil
			})
		},
	}
}

func newRecoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Pause scans left running by a process that died",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(st *store.Store) error {
				n, err := a.controller(st).Recover(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Recovered %d interrupted scan(s)\n", n)
				return nil
			})
		},
	}
}
