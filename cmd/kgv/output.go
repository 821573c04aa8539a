package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/session"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printStatus(st session.Status) {
	fmt.Printf("User:    %s\n", st.UserID)
	fmt.Printf("Graph:   %s\n", st.GraphID)
	fmt.Printf("Theme:   %s\n", st.Theme)
	fmt.Printf("Nodes:   %d\n", st.Nodes)
	fmt.Printf("Links:   %d\n", st.Links)
	if st.Message != "" {
		fmt.Printf("Message: %s\n", ui.RenderMuted(st.Message))
	}
}

func printGraph(g *model.Graph) {
	names := make(map[string]string, len(g.Nodes))
	rows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		names[n.ID] = n.Name
		rows = append(rows, []string{n.ID, string(n.Type), n.Name})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	fmt.Print(ui.Table([]string{"ID", "TYPE", "NAME"}, rows))

	if len(g.Links) == 0 {
		return
	}
	fmt.Println()
	rows = rows[:0]
	for _, l := range g.Links {
		rows = append(rows, []string{nameOr(names, l.Source), l.Label, nameOr(names, l.Target)})
	}
	fmt.Print(ui.Table([]string{"SOURCE", "LABEL", "TARGET"}, rows))
}

func nameOr(names map[string]string, id string) string {
	if n := names[id]; n != "" {
		return n
	}
	return id
}
