package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/fruit"
	"github.com/spigell/fruit-matcher/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Validate and store fruits from YAML or JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return ingest(cmd.Context(), args, dryRun)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("dry-run", false, "validate files without storing anything")
}

func ingest(ctx context.Context, paths []string, dryRun bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e := setup(ctx)
	defer e.Close()

	stored := &fruit.Fruits{}
	for _, path := range paths {
		fruits, err := fruit.LoadFile(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}

		for i, f := range fruits.Items {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("%s: fruit #%d: %w", path, i+1, err)
			}
		}

		if dryRun {
			e.logger.Info("fruits are valid", zap.String("file", path), zap.Int("count", fruits.Len()))
			continue
		}

		saved := 0
		for _, f := range fruits.Items {
			_, err := e.db.SaveFruit(ctx, f)
			if errors.Is(err, store.ErrAlreadyExists) {
				e.logger.Warn("skipping fruit", zap.String("id", f.ID), zap.String("reason", "already stored"))
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			e.logger.Debug("stored fruit", zap.String("id", f.ID), zap.String("type", string(f.Type)))
			stored.Items = append(stored.Items, f)
			saved++
		}

		e.logger.Info("ingested file", zap.String("file", path), zap.Int("count", saved))
	}

	counts := stored.CountByType()
	e.logger.Info("ingestion finished",
		zap.Int("apples", counts[fruit.TypeApple]),
		zap.Int("oranges", counts[fruit.TypeOrange]),
		zap.Strings("ids", stored.IDs()),
	)

	return nil
}
