/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foodgram/apiserver/config"
	"github.com/foodgram/apiserver/internal/db"
	"github.com/foodgram/apiserver/internal/logger"
	"github.com/foodgram/apiserver/internal/services"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
	"github.com/spf13/cobra"
)

var seedDir string

// seedCmd loads the tag and ingredient catalog from JSON files.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load tags and ingredients into the database",
	Long: `Loads tags.json and ingredients.json from the data directory.
Rows that already exist are skipped, so the command can be re-run.

	foodgram seed --dir data
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.New(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		var tags []types.Tag
		if err := readJSONFile(filepath.Join(seedDir, "tags.json"), &tags); err != nil {
			return err
		}
		var ingredients []types.Ingredient
		if err := readJSONFile(filepath.Join(seedDir, "ingredients.json"), &ingredients); err != nil {
			return err
		}

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		catalog := services.NewCatalogService(store.NewCatalogRepository(conn), services.WithLogger(log))
		if _, err := catalog.SeedTags(cmd.Context(), tags); err != nil {
			return err
		}
		if _, err := catalog.SeedIngredients(cmd.Context(), ingredients); err != nil {
			return err
		}
		return nil
	},
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedDir, "dir", "data", "directory containing tags.json and ingredients.json")
}
