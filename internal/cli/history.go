package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/storage"
)

// historyCommand creates the history command for browsing stored layouts.
func (c *CLI) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse layouts stored with solve --save",
	}

	cmd.AddCommand(c.historyListCommand())
	cmd.AddCommand(c.historyShowCommand())

	return cmd
}

func (c *CLI) historyListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored layouts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(st storage.Store) error {
				list, err := st.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					printInfo("No stored layouts")
					return nil
				}
				fmt.Fprintln(stdout, historyTable(list))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum number of layouts")
	return cmd
}

func (c *CLI) historyShowCommand() *cobra.Command {
	var (
		format   string
		solution bool
	)
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a stored layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := document.ParseFormat(format)
			if err != nil {
				return err
			}
			return c.withStore(cmd.Context(), func(st storage.Store) error {
				rec, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var v any = rec
				if solution {
					v = rec.Solution
				}
				data, err := document.Marshal(v, f)
				if err != nil {
					return err
				}
				_, err = stdout.Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, yaml, toml")
	cmd.Flags().BoolVar(&solution, "solution", false, "print only the solution")
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(storage.Store) error) error {
	st, err := c.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if st == nil {
		return errs.New(errs.ErrCodeUnsupported, "storage is disabled (storage.backend = none)")
	}
	defer st.Close()
	return fn(st)
}

// historyTable renders summaries as a bordered table.
func historyTable(list []storage.Summary) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, len(list))
	for i, s := range list {
		rows[i] = []string{s.ID, s.Name, s.Status, strconv.Itoa(s.Entities), s.CreatedAt.Local().Format("2006-01-02 15:04")}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Name", "Status", "Entities", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 2 && list[row].Status != "converged" {
				return lipgloss.NewStyle().Foreground(colorYellow)
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})
	return t.Render()
}
