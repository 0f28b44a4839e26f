package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/services"
	apperrors "knowledge-base/backend/pkg/errors"
	"knowledge-base/backend/pkg/logger"
)

type seedOptions struct {
	username string
	email    string
	password string
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo account with sample notes",
		Long: `seed registers a demo account and fills it with a small category tree,
a few tags and cross-referencing notes. An existing account is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			summary, err := seed(cmd.Context(), env.Services, *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "demo", "Account username")
	cmd.Flags().StringVar(&opts.email, "email", "demo@example.com", "Account email")
	cmd.Flags().StringVar(&opts.password, "password", "demo-password", "Account password")
	return cmd
}

func seed(ctx context.Context, svc *services.Manager, opts seedOptions) (string, error) {
	log := logger.Named("kbctl.seed")

	session, err := svc.Auth.Register(ctx, services.RegisterInput{
		Username: opts.username,
		Email:    opts.email,
		Password: opts.password,
	})
	if apperrors.IsErrorType(err, apperrors.ErrorTypeConflict) {
		return fmt.Sprintf("Account %s already exists, nothing seeded", opts.email), nil
	}
	if err != nil {
		return "", err
	}
	owner := session.User.ID
	log.Info("Seeding demo account", zap.Int64("owner_id", owner))

	programming, err := svc.Categories.Create(ctx, owner, services.CategoryInput{Name: "Programming", Color: "#722ed1"})
	if err != nil {
		return "", err
	}
	golang, err := svc.Categories.Create(ctx, owner, services.CategoryInput{Name: "Go", ParentID: &programming.ID})
	if err != nil {
		return "", err
	}
	reading, err := svc.Categories.Create(ctx, owner, services.CategoryInput{Name: "Reading"})
	if err != nil {
		return "", err
	}

	tags, err := svc.Tags.BulkCreate(ctx, owner, []string{"go", "databases", "graphs", "howto"})
	if err != nil {
		return "", err
	}
	tagID := make(map[string]int64, len(tags))
	for _, t := range tags {
		tagID[t.Name] = t.ID
	}

	basics, err := svc.Notes.Create(ctx, owner, services.NoteInput{
		Title:      "Go basics",
		Content:    "# Go basics\n\nPackages, interfaces and explicit error returns.",
		CategoryID: &golang.ID,
		TagIDs:     []int64{tagID["go"], tagID["howto"]},
		IsPinned:   true,
	})
	if err != nil {
		return "", err
	}
	storage, err := svc.Notes.Create(ctx, owner, services.NoteInput{
		Title:      "Storing a graph in SQLite",
		Content:    fmt.Sprintf("Nodes and links live in two tables. Builds on [[note:%d]].", basics.ID),
		CategoryID: &golang.ID,
		TagIDs:     []int64{tagID["databases"], tagID["graphs"]},
	})
	if err != nil {
		return "", err
	}
	if _, err := svc.Notes.Create(ctx, owner, services.NoteInput{
		Title: "Reading list",
		Content: fmt.Sprintf("- [Go basics](/notes/%d)\n- [Storing a graph in SQLite](/notes/%d)\n",
			basics.ID, storage.ID),
		CategoryID: &reading.ID,
		TagIDs:     []int64{tagID["howto"]},
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Seeded account %s (id %d): 3 categories, %d tags, 3 notes", opts.email, owner, len(tags)), nil
}
