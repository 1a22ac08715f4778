package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/recall/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a memory",
		Long:  "Add a memory to the store. Without --category, one is picked from the content.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAdd,
	}

	cmd.Flags().StringP("type", "t", "short", "Memory type: short, mid, or long")
	cmd.Flags().String("category", "", "Category: work, family, friendship, happiness, or other")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	typeName, _ := cmd.Flags().GetString("type")
	categoryName, _ := cmd.Flags().GetString("category")
	content := strings.Join(args, " ")

	typ, err := memory.ParseType(typeName)
	if err != nil {
		exitErr("parse type", err)
	}
	category, err := memory.ParseCategory(categoryName)
	if err != nil {
		exitErr("parse category", err)
	}

	m, err := openManager()
	if err != nil {
		exitErr("open manager", err)
	}
	defer m.Stop()

	m.AddMemory(content, typ, category)
	fmt.Printf("added [%s] %s\n", typ, content)
}
