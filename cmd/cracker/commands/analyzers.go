/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyzers.go
Description: list-analyzers command. Prints the analyzers a data model can reference
with their accepted aliases.
*/

package commands

import (
	"strings"

	"github.com/kleascm/akaylee-cracker/pkg/analyzers"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// ListAnalyzers prints the registered analyzers
func ListAnalyzers(cmd *cobra.Command, args []string) {
	registry := analyzers.Default()

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"analyzer", "aliases"})
	for _, name := range registry.Names() {
		table.Append([]string{name, strings.Join(registry.Aliases(name), ", ")})
	}
	table.Render()
}

// NewListAnalyzersCommand creates the list-analyzers command
func NewListAnalyzersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-analyzers",
		Short: "List available analyzers",
		Long:  `List the analyzers that data model elements can name in their analyzer key.`,
		Run:   ListAnalyzers,
	}
}
