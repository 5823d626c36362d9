package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lineagecore/internal/backup"
	"lineagecore/internal/blob"
	"lineagecore/internal/core"
	"lineagecore/pkg/domain"
)

// newRootCommand builds the command tree. The caller closes the returned app
// once the command has run, whether or not it failed.
func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "lineagectl",
		Short:         "Maintenance tasks for a plant lineage store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "extra directory searched for lineagecore.yaml")
	root.PersistentFlags().StringVar(&a.actor, "actor", "", "actor recorded on mutations (default $USER)")

	root.AddCommand(
		reconcileCommand(a),
		pedigreeCommand(a),
		backupCommand(a),
		restoreCommand(a),
		snapshotsCommand(a),
	)
	return root, a
}

func reconcileCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute offspring counts and germination statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			report, _, err := svc.Reconcile(a.actorContext(ctx))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			fmt.Fprintf(out, "checked %d crosses and %d seed batches\n", report.Crosses, report.SeedBatches)
			if len(report.Drift) == 0 {
				fmt.Fprintln(out, "no drift")
				return nil
			}
			for _, d := range report.Drift {
				fmt.Fprintf(out, "%s %s %s: %g -> %g\n", d.Entity, d.Code, d.Field, d.Recorded, d.Actual)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func pedigreeCommand(a *app) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "pedigree <accession code or id>",
		Short: "Print the ancestry tree of an accession",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			target, err := resolveAccession(ctx, svc, args[0])
			if err != nil {
				return err
			}
			tree, err := svc.Pedigree(ctx, target.ID, depth)
			if err != nil {
				return err
			}
			printPedigree(cmd.OutOrStdout(), &tree, "", 0)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "generations to include (0 for all)")
	return cmd
}

func resolveAccession(ctx context.Context, svc *core.Service, ref string) (domain.Accession, error) {
	a, err := svc.FindAccessionByCode(ctx, ref)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Accession{}, err
	}
	return svc.GetAccession(ctx, ref)
}

func printPedigree(w io.Writer, node *core.PedigreeNode, role string, level int) {
	if node == nil {
		return
	}
	a := node.Accession
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", level))
	if role != "" {
		b.WriteString(role + ": ")
	}
	b.WriteString(a.Code)
	if name := a.Name(); name != "" {
		b.WriteString(" " + name)
	}
	if a.Generation != nil {
		fmt.Fprintf(&b, " [%s]", *a.Generation)
	}
	if node.Repeated {
		b.WriteString(" (see above)")
	}
	fmt.Fprintln(w, b.String())
	printPedigree(w, node.Female, "female", level+1)
	printPedigree(w, node.Male, "male", level+1)
	printPedigree(w, node.CloneSource, "clone of", level+1)
}

func backupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the store to blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.backups(cmd.Context())
			if err != nil {
				return err
			}
			info, err := m.Backup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", info.Key, info.Size)
			return nil
		},
	}
}

func restoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [snapshot key]",
		Short: "Replace the store with a snapshot (latest when no key is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.backups(cmd.Context())
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			info, err := m.Restore(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", info.Key)
			return nil
		},
	}
}

func snapshotsCommand(a *app) *cobra.Command {
	var withURL bool
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := a.backups(ctx)
			if err != nil {
				return err
			}
			infos, err := m.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, info := range infos {
				if !withURL {
					fmt.Fprintf(out, "%s\t%d\n", info.Key, info.Size)
					continue
				}
				url, err := m.DownloadURL(ctx, info.Key, expiry)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d\t%s\n", info.Key, info.Size, url)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withURL, "url", false, "append a download URL for each snapshot")
	cmd.Flags().DurationVar(&expiry, "expiry", blob.DefaultURLExpiry, "lifetime of signed download URLs")
	return cmd
}

func (a *app) backups(ctx context.Context) (*backup.Manager, error) {
	store, err := a.snapshotter(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := a.blobs(ctx)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(store, blobs, backup.WithLogger(a.logger)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
