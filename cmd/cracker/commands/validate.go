/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: validate.go
Description: Validate command for the Akaylee Cracker. Loads a data model, reports
every validation problem and prints the element tree of a valid model.
*/

package commands

import (
	"errors"
	"fmt"

	"github.com/kleascm/akaylee-cracker/pkg/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunValidate executes the validate command
func RunValidate(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	path := viper.GetString("model")
	if len(args) > 0 {
		path = args[0]
	}

	out := cmd.OutOrStdout()
	model, err := loadModel(path)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s: %d problems", path, len(verr.Problems))))
			for _, p := range verr.Problems {
				fmt.Fprintln(out, "  - "+p)
			}
		}
		return err
	}

	fmt.Fprintln(out, valueStyle.Render(fmt.Sprintf("✓ %s is a valid data model", path)))
	RenderTemplate(out, model.Root)
	return nil
}

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [model]",
		Short: "Validate a data model file",
		Long: `Load a YAML data model and check element names, widths, flag positions,
relation kinds, expressions and targets. Every problem is reported at once.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd, map[string]string{"model": "model"})
		},
		RunE: RunValidate,
	}
	cmd.Flags().String("model", "", "Path to the YAML data model")
	return cmd
}
