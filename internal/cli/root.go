// Package cli implements the recall CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/recall/engine"
	"github.com/becomeliminal/recall/memory"
	"github.com/becomeliminal/recall/memory/embedder/mock"
	"github.com/becomeliminal/recall/memory/search"
	"github.com/becomeliminal/recall/memory/store/flatfile"
)

var (
	dataDir    string
	configPath string
	formatFlag string
	semantic   bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Local memory store with write-back persistence",
	Long:  "A small CLI over the recall memory engine. Memories live in per-type flat files; search is keyword-based, or semantic with --semantic.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: $RECALL_DIR or ~/.recall)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVar(&semantic, "semantic", false, "Use embedding-based search instead of keyword matching")
}

func getDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if env := os.Getenv("RECALL_DIR"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recall")
}

// openManager builds and starts a manager for one command invocation.
func openManager() (*engine.Manager, error) {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		loaded, err := engine.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	dir := getDataDir()
	if cfg.DataDir != "" && dataDir == "" {
		dir = cfg.DataDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	store, err := flatfile.New(dir)
	if err != nil {
		return nil, err
	}

	opts := cfg.Options()
	if semantic {
		searcher, err := search.New(mock.New())
		if err != nil {
			return nil, err
		}
		// The index is in-memory per process; rebuild it from the store.
		for _, item := range store.All() {
			if err := searcher.Index(context.Background(), item); err != nil {
				return nil, err
			}
		}
		opts = append(opts, engine.WithSearcher(searcher))
	}

	m, err := engine.New(store, opts...)
	if err != nil {
		return nil, err
	}
	m.Start()
	return m, nil
}

// itemView is the JSON shape of one memory item.
type itemView struct {
	Content   string `json:"content"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
}

func printItems(items []memory.Item) {
	if formatFlag == "json" {
		views := make([]itemView, 0, len(items))
		for _, it := range items {
			views = append(views, itemView{
				Content:   it.Content,
				Type:      it.Type.String(),
				Category:  it.Category.String(),
				Timestamp: it.Timestamp,
			})
		}
		b, _ := json.MarshalIndent(views, "", "  ")
		fmt.Println(string(b))
		return
	}

	for _, it := range items {
		fmt.Printf("%s  [%s/%s]  %s\n",
			it.CreatedAt().Format("2006-01-02 15:04"), it.Type, it.Category, it.Content)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
