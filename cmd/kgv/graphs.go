package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/kgview/internal/export"
	"github.com/alfredjeanlab/kgview/internal/render"
	"github.com/alfredjeanlab/kgview/internal/session"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

// settleFrames bounds the layout frames run before a headless view is
// printed or exported.
const settleFrames = 600

// openGraph starts a CLI session and puts graphID on screen, or the user's
// last graph when graphID is empty.
func openGraph(ctx context.Context, graphID string) (*session.Session, error) {
	sess, err := newSession(sessionOptions{})
	if err != nil {
		return nil, err
	}
	if graphID == "" {
		err = sess.Start(ctx)
	} else {
		if sess.UserID() != "" {
			if _, err = sess.LoadGraphList(ctx, ""); err != nil {
				sess.Close()
				return nil, err
			}
		}
		err = sess.LoadGraph(ctx, graphID)
	}
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.Settle(settleFrames)
	return sess, nil
}

var graphsCmd = &cobra.Command{
	Use:     "graphs",
	Short:   "List the user's graphs",
	GroupID: "graphs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer sess.Close()

		ids, err := sess.LoadGraphList(cmd.Context(), "")
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(ids)
			return nil
		}
		if len(ids) == 0 {
			fmt.Println(ui.RenderMuted(session.EmptyMessage))
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show [graph-id]",
	Short:   "Show a graph's nodes and links",
	Long:    `Show a graph's nodes and links. "all" shows the merged view of every graph of the user; no argument shows the last one.`,
	GroupID: "graphs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openGraph(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		defer sess.Close()

		g := sess.Graph()
		if jsonOutput {
			printJSON(map[string]any{"status": sess.Status(), "graph": g})
			return nil
		}
		printStatus(sess.Status())
		if g != nil {
			fmt.Println()
			printGraph(g)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:     "upload <file>",
	Short:   "Upload a document and show the extracted graph",
	GroupID: "graphs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		sess, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer sess.Close()

		graphID, err := sess.Upload(cmd.Context(), filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]string{"graph_id": graphID})
			return nil
		}
		fmt.Printf("Uploaded %s as graph %s\n", args[0], ui.RenderAccent(graphID))
		return nil
	},
}

var deleteGraphCmd = &cobra.Command{
	Use:     "delete-graph <graph-id>",
	Short:   "Delete a graph",
	GroupID: "graphs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer sess.Close()
		if sess.UserID() != "" {
			if _, err := sess.LoadGraphList(cmd.Context(), ""); err != nil {
				return err
			}
		}
		return sess.DeleteGraph(cmd.Context(), args[0])
	},
}

var deleteGraphsCmd = &cobra.Command{
	Use:     "delete-graphs",
	Short:   "Delete every graph of the user",
	GroupID: "graphs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer sess.Close()
		if _, err := sess.LoadGraphList(cmd.Context(), ""); err != nil {
			return err
		}
		return sess.DeleteUserGraphs(cmd.Context(), "")
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [graph-id]",
	Short: "Export a graph document or its rendered scene",
	Long: `Export the graph document (json, yaml) or the rendered scene (svg, png).

With --snapshot the scene and graph are written to the configured export
destinations instead (KGV_EXPORT_DIR, KGV_EXPORT_BUCKET, KGV_EXPORT_GIT_REPO).`,
	GroupID: "graphs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		snapshot, _ := cmd.Flags().GetBool("snapshot")
		ctx := cmd.Context()

		sess, err := openGraph(ctx, firstArg(args))
		if err != nil {
			return err
		}
		defer sess.Close()

		if snapshot {
			dests, err := buildDestinations(ctx, cfg.Export)
			if err != nil {
				return err
			}
			if len(dests) == 0 {
				return fmt.Errorf("no export destination configured")
			}
			return export.NewScheduler(sess, dests, export.SchedulerOptions{
				Formats: cfg.Export.Formats,
				Logger:  logger,
			}).RunOnce(ctx)
		}

		var data []byte
		switch format {
		case "json":
			data, err = sess.ExportGraph(ctx)
		case "yaml":
			data, err = sess.ExportGraph(ctx)
			if err == nil {
				data, err = jsonToYAML(data)
			}
		case "svg", "png":
			data, err = sess.SerializeScene(render.Format(format))
		default:
			return fmt.Errorf("unknown format %q (must be json, yaml, svg or png)", format)
		}
		if err != nil {
			return err
		}

		if output == "" || output == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
		return nil
	},
}

func jsonToYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding exported graph: %w", err)
	}
	return yaml.Marshal(doc)
}

var shareCmd = &cobra.Command{
	Use:     "share [graph-id]",
	Short:   "Print the public link to a graph",
	GroupID: "graphs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openGraph(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		defer sess.Close()

		link, err := sess.ShareLink()
		if err != nil {
			return err
		}
		fmt.Println(link)
		return nil
	},
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "output format (json, yaml, svg, png)")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	exportCmd.Flags().Bool("snapshot", false, "write a snapshot to the configured export destinations")
}
