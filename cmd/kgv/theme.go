package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kgview/internal/theme"
	"github.com/alfredjeanlab/kgview/internal/ui"
)

var themeCmd = &cobra.Command{
	Use:   "theme [toggle|light|dark]",
	Short: "Show or change the color scheme",
	Long: `Show the active color scheme, or change it. A stored choice wins over
KGV_COLOR_SCHEME, COLORFGBG and the color scheme file.`,
	GroupID:   "views",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"toggle", string(theme.Light), string(theme.Dark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := theme.NewStore(prefs, themeSource(cfg), logger)
		mode := store.Resolve(ctx)

		switch arg := firstArg(args); arg {
		case "":
		case "toggle":
			mode = store.Toggle(ctx)
		default:
			m, ok := theme.ParseMode(arg)
			if !ok {
				return fmt.Errorf("unknown theme %q (must be toggle, light or dark)", arg)
			}
			store.Set(ctx, m)
			mode = store.Mode()
		}

		if jsonOutput {
			printJSON(map[string]string{"theme": string(mode)})
			return nil
		}
		fmt.Println(ui.RenderAccent(string(mode)))
		return nil
	},
}
