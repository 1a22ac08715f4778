package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent memories",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	m, err := openManager()
	if err != nil {
		exitErr("open manager", err)
	}
	defer m.Stop()

	printItems(m.RecentMemories(limit))
}
