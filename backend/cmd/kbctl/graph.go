package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"knowledge-base/backend/internal/services"
	apperrors "knowledge-base/backend/pkg/errors"
)

func newRebuildGraphCmd(root *rootOptions) *cobra.Command {
	var owner int64

	cmd := &cobra.Command{
		Use:   "rebuild-graph",
		Short: "Reproject the graph from the relational data",
		Long: `rebuild-graph re-synchronizes every category, tag, note and collection
of one account (or of every account) into the graph store and removes nodes
whose entity no longer exists. Manually created links survive unless
reconciliation owns them or they touch a removed node.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			var results []*services.RebuildResult
			if owner > 0 {
				res, err := env.Services.Graph.Rebuild(cmd.Context(), owner)
				if err != nil {
					return err
				}
				results = append(results, res)
			} else {
				if results, err = env.Services.Graph.RebuildAll(cmd.Context()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "owner %d: %d categories, %d tags, %d notes, %d collections, %d stale nodes removed in %s\n",
					r.OwnerID, r.Categories, r.Tags, r.Notes, r.Collections, r.Pruned, r.Duration.Round(time.Millisecond))
			}
			fmt.Fprintf(out, "Rebuilt %d account(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().Int64Var(&owner, "owner", 0, "Only rebuild this account id")
	return cmd
}

func newExportGraphCmd(root *rootOptions) *cobra.Command {
	var (
		owner  int64
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export-graph",
		Short: "Write an account's graph as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner <= 0 {
				return apperrors.NewValidationFailed("owner", "is required")
			}
			if format != "json" && format != "yaml" {
				return apperrors.NewValidationFailed("format", "must be json or yaml")
			}

			env, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			view, err := env.Services.Graph.Full(cmd.Context(), owner)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return encodeGraph(w, format, view)
		},
	}

	cmd.Flags().Int64Var(&owner, "owner", 0, "Account id to export")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func encodeGraph(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
