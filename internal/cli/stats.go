package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory system statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	m, err := openManager()
	if err != nil {
		exitErr("open manager", err)
	}
	defer m.Stop()

	stats := m.Statistics()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(b))
		return
	}

	fmt.Printf("memories:        %d\n", stats.TotalMemories)
	fmt.Printf("searches:        %d\n", stats.TotalSearches)
	fmt.Printf("avg search time: %s\n", stats.AverageSearchTime)
	fmt.Printf("cache hit rate:  %d%%\n", stats.CacheHitRate)
	fmt.Printf("tracked weights: %d (avg %.2f, max %.2f)\n",
		stats.Weights.TrackedMemories, stats.Weights.AverageWeight, stats.Weights.MaxWeight)
	fmt.Printf("events:          %d published, %d delivered, %d dropped\n",
		stats.Events.Published, stats.Events.Delivered, stats.Events.Dropped)
}
