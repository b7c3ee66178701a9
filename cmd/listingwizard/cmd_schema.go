package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/listingwizard/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the stages and field rules of the wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := schema.Default()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(sc)
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
