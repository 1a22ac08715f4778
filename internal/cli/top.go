package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List memories ranked by importance weight",
		Run:   runTop,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")

	RootCmd.AddCommand(cmd)
}

func runTop(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	m, err := openManager()
	if err != nil {
		exitErr("open manager", err)
	}
	defer m.Stop()

	printItems(m.TopMemories(limit))
}
