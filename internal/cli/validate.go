package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file|glob]...",
		Short: "Check layout documents without solving them",
		Long: `Check layout documents for structural errors.

Constraints that reference unknown entities are reported as warnings; they
are skipped when solving unless --strict is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandInputs(args)
			if err != nil {
				return err
			}
			return c.runValidate(paths)
		},
	}
}

func (c *CLI) runValidate(paths []string) error {
	invalid := 0
	for _, path := range paths {
		doc, err := document.ReadFile(path)
		if err == nil {
			err = doc.Validate()
		}
		if err != nil {
			invalid++
			printError("%s", path)
			printDetail("%s", errs.UserMessage(err))
			continue
		}
		printSuccess("%s", path)
		printDetail("%d entities · %d constraints · schema %s", len(doc.Entities), len(doc.Constraints), doc.Schema)
		for _, w := range doc.Warnings() {
			printWarning("%s", w)
		}
	}

	if invalid > 0 {
		return errs.New(errs.ErrCodeInvalidDocument, "%d of %d documents are invalid", invalid, len(paths))
	}
	return nil
}
