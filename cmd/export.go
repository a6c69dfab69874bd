package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hillwinds/benetl/internal/export"
)

var exportAnalysis bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write flat-file snapshots of the cleaned dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		x := export.New(st, cfg.Export.Dir)

		paths, err := x.Employees(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if exportAnalysis {
			more, err := x.Analysis(ctx)
			if err != nil {
				return eris.Wrap(err, "export")
			}
			paths = append(paths, more...)
		}

		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportAnalysis, "analysis", false, "also export the analysis result tables")
	rootCmd.AddCommand(exportCmd)
}
