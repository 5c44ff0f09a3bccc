package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/TWLS151/Soootudy-sub000/internal/artifact"
	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/geometry"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/surface"
	"github.com/TWLS151/Soootudy-sub000/internal/thread"
)

func requireArtifact(cmd *cobra.Command) (string, error) {
	id, err := cmd.Flags().GetString("artifact")
	if err != nil {
		return "", fmt.Errorf("getting artifact flag value: %w", err)
	}
	if _, ok := model.ParseArtifactID(id); !ok {
		return "", fmt.Errorf("invalid artifact id %q, want <owner>/<period>/<name>", id)
	}
	return id, nil
}

func exportCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print an artifact's source followed by its anonymised comments",
		Example: heredoc.Doc(`
			$ annotate export --artifact jsc/26-02-w1/swea-2005
			$ annotate export --artifact jsc/26-02-w1/swea-2005 --source ./swea-2005.py
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifactID, err := requireArtifact(cmd)
			if err != nil {
				return err
			}
			sourceFile, _ := cmd.Flags().GetString("source")
			cfg := d.config()
			ctx := cmd.Context()

			var source artifact.Source
			if sourceFile != "" {
				data, err := os.ReadFile(sourceFile)
				if err != nil {
					return fmt.Errorf("reading source file: %w", err)
				}
				source = artifact.Static{artifactID: string(data)}
			} else {
				source, err = d.source(cfg)
				if err != nil {
					return err
				}
				if source == nil {
					return fmt.Errorf("no artifact source configured, pass --source")
				}
			}
			text, err := source.Read(ctx, artifactID)
			if err != nil {
				return fmt.Errorf("reading artifact: %w", err)
			}

			logger := loggerFor(cmd, cfg)
			b, release, err := d.backend(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer release()

			comments := commentclient.New(artifactID, b, nil, logger).Load(ctx)
			_, err = fmt.Fprint(cmd.OutOrStdout(), surface.CopyWithComments(text.Content, comments))
			return err
		},
	}
	cmd.Flags().String("artifact", "", "Artifact id (<owner>/<period>/<name>)")
	cmd.Flags().String("source", "", "Read the source text from this file instead of the configured source")
	_ = cmd.MarkFlagRequired("artifact")
	_ = cmd.MarkFlagFilename("source")
	return cmd
}

func layoutCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print where an artifact's comment markers are drawn",
		Example: heredoc.Doc(`
			$ annotate layout --artifact jsc/26-02-w1/swea-2005 --char-width 7.8 --viewport-width 640
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifactID, err := requireArtifact(cmd)
			if err != nil {
				return err
			}
			var metrics geometry.Metrics
			metrics.CharWidth, _ = cmd.Flags().GetFloat64("char-width")
			metrics.GutterWidth, _ = cmd.Flags().GetFloat64("gutter-width")
			metrics.ViewportWidth, _ = cmd.Flags().GetFloat64("viewport-width")
			if metrics.CharWidth <= 0 || metrics.ViewportWidth <= 0 {
				return fmt.Errorf("char-width and viewport-width must be positive")
			}

			cfg := d.config()
			ctx := cmd.Context()
			logger := loggerFor(cmd, cfg)
			b, release, err := d.backend(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer release()

			client := commentclient.New(artifactID, b, nil, logger)
			client.Load(ctx)
			snap := client.Snapshot()
			colors := snap.Colors()
			if err := printLayout(cmd, geometry.Compute(snap.Comments, colors, metrics)); err != nil {
				return err
			}
			return printLegend(cmd, colors)
		},
	}
	cmd.Flags().String("artifact", "", "Artifact id (<owner>/<period>/<name>)")
	cmd.Flags().Float64("char-width", 8, "Width of one character in pixels")
	cmd.Flags().Float64("gutter-width", 40, "Width of the line-number gutter in pixels")
	cmd.Flags().Float64("viewport-width", 800, "Width of the code view in pixels")
	_ = cmd.MarkFlagRequired("artifact")
	return cmd
}

func printLayout(cmd *cobra.Command, layout geometry.Layout) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ANCHOR\tAUTHOR\tCOLOR\tOFFSET\tX\tY\tPLACEMENT\tTHREAD")
	for _, group := range [][]geometry.Marker{layout.Markers, layout.Overflow} {
		for _, mk := range group {
			placement := "inline"
			if mk.Overflow {
				placement = "overflow"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%.1f\t%s\t%s\n",
				mk.Anchor, mk.Author, mk.Color.Name, mk.Offset, mk.X, mk.Y, placement, mk.ThreadID())
		}
	}
	return w.Flush()
}

// printLegend lists authors in colour assignment order.
func printLegend(cmd *cobra.Command, colors thread.ColorMap) error {
	if colors.Len() == 0 {
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, author := range colors.Authors() {
		c := colors.For(author)
		if _, err := fmt.Fprintf(out, "%s\t%s %s\n", author, c.Name, c.Dot); err != nil {
			return err
		}
	}
	return nil
}

func watchCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a line every time an artifact's comments are refetched",
		Example: heredoc.Doc(`
			$ annotate watch --artifact jsc/26-02-w1/swea-2005
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifactID, err := requireArtifact(cmd)
			if err != nil {
				return err
			}
			cfg := d.config()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := loggerFor(cmd, cfg)
			b, release, err := d.backend(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer release()

			return watch(ctx, cmd, commentclient.New(artifactID, b, nil, logger))
		},
	}
	cmd.Flags().String("artifact", "", "Artifact id (<owner>/<period>/<name>)")
	_ = cmd.MarkFlagRequired("artifact")
	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, client *commentclient.Client) error {
	out := cmd.OutOrStdout()
	report := func(snap *commentclient.Snapshot) {
		fmt.Fprintf(out, "v%d %s: %d comments, %d threads, %d reactions\n",
			snap.Version, snap.ArtifactID, len(snap.Comments), len(snap.Threads()), len(snap.Reactions))
	}

	unsubscribe, err := client.Subscribe(ctx, report)
	if err != nil {
		return err
	}
	defer unsubscribe()

	client.Load(ctx)
	report(client.Snapshot())
	<-ctx.Done()
	return nil
}
