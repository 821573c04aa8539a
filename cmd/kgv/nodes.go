package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kgview/internal/session"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search <keyword>",
	Short:   "Search nodes and focus the first match",
	GroupID: "nodes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphID, _ := cmd.Flags().GetString("graph")
		sess, err := openGraph(cmd.Context(), graphID)
		if err != nil {
			return err
		}
		defer sess.Close()

		out, err := sess.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sess.SettleFocus()
		if jsonOutput {
			printJSON(out)
			return nil
		}
		rows := make([][]string, len(out.Results))
		for i, r := range out.Results {
			mark := ""
			if r.ID == out.FocusedID {
				mark = ui.RenderAccent("*")
			}
			rows[i] = []string{r.ID, r.Type, r.Name, mark}
		}
		fmt.Print(ui.Table([]string{"ID", "TYPE", "NAME", ""}, rows))
		fmt.Printf("%d highlighted in %s\n", out.Highlighted, sess.GraphID())
		return nil
	},
}

var addNodeCmd = &cobra.Command{
	Use:     "add-node <source-node-id>",
	Short:   "Add a node linked from an existing node",
	GroupID: "nodes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphID, _ := cmd.Flags().GetString("graph")
		name, _ := cmd.Flags().GetString("name")
		typ, _ := cmd.Flags().GetString("type")
		label, _ := cmd.Flags().GetString("label")

		sess, err := openGraph(cmd.Context(), graphID)
		if err != nil {
			return err
		}
		defer sess.Close()

		node, err := sess.AddNode(cmd.Context(), session.AddNodeForm{
			GraphID:      sess.GraphID(),
			SourceNodeID: args[0],
			Name:         name,
			Type:         typ,
			Label:        label,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(node)
			return nil
		}
		fmt.Printf("Added %s (%s)\n", ui.RenderAccent(node.Name), node.ID)
		return nil
	},
}

var deleteNodeCmd = &cobra.Command{
	Use:     "delete-node <node-id>",
	Short:   "Delete a node and its links",
	GroupID: "nodes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphID, _ := cmd.Flags().GetString("graph")
		sess, err := openGraph(cmd.Context(), graphID)
		if err != nil {
			return err
		}
		defer sess.Close()
		return sess.DeleteNode(cmd.Context(), sess.GraphID(), args[0])
	},
}

var deleteUserCmd = &cobra.Command{
	Use:     "delete-user",
	Short:   "Delete the user account and its graphs",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		sess, err := newSession(sessionOptions{})
		if err != nil {
			return err
		}
		defer sess.Close()
		return sess.DeleteUser(cmd.Context(), "", password)
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, addNodeCmd, deleteNodeCmd} {
		c.Flags().StringP("graph", "g", "", "graph id (default: the last graph)")
	}
	addNodeCmd.Flags().String("name", "", "name of the new node (required)")
	addNodeCmd.Flags().String("type", "", "type of the new node, e.g. Person (required)")
	addNodeCmd.Flags().String("label", "", "label of the link from the source node (required)")
	deleteUserCmd.Flags().String("password", "", "account password (required)")
}
