package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmind/taskmind/internal/config"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the registered capabilities",
	Long: `List every capability in the registry: its trigger keywords, what
artifact kinds it accepts and produces, and the collaborator that runs it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return err
		}
		printAgents(reg)
		return nil
	},
}

func printAgents(reg *registry.Registry) {
	header := color.New(color.FgCyan, color.Bold)
	subtle := color.New(color.Faint)

	for _, p := range reg.Profiles() {
		header.Printf("%s", p.DisplayName)
		subtle.Printf("  (%s, runs %s)\n", p.ID, p.CollaboratorID)

		keywords := make([]string, 0, len(p.Keywords))
		for _, k := range p.Keywords {
			keywords = append(keywords, k.Phrase)
		}
		fmt.Printf("  triggers: %s\n", strings.Join(keywords, ", "))

		if len(p.Accepts) > 0 {
			fmt.Printf("  accepts:  %s\n", joinKinds(p.Accepts))
		}
		fmt.Printf("  produces: %s\n\n", p.Produces)
	}
}

func joinKinds(kinds []models.ArtifactKind) string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
