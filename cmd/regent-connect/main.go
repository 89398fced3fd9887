package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"regent-connect/internal/app"
	"regent-connect/internal/data/store"
	"regent-connect/internal/infra/config"
	"regent-connect/internal/infra/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "regent-connect",
	Short: "Regent Connect - campus social backend",
	Long: `Regent Connect is a self-contained campus social backend: accounts,
private and group chat, friend requests, 24-hour statuses, simulated
calls, and the Regent AI assistant, all persisted in a local store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backend with its upload server and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the whole store as a JSON bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openStore()
		if err != nil {
			return err
		}
		defer kv.Close()

		bundle := kv.ExportAll()
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return fmt.Errorf("encode bundle: %w", err)
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
		fmt.Printf("exported %d collections to %s\n", len(bundle.Data), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON bundle, overwriting collections it contains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read bundle: %w", err)
		}
		var bundle store.Bundle
		if err := json.Unmarshal(data, &bundle); err != nil {
			return fmt.Errorf("decode bundle: %w", err)
		}

		kv, err := openStore()
		if err != nil {
			return err
		}
		defer kv.Close()

		n := kv.ImportAll(&bundle)
		fmt.Printf("imported %d collections from %s\n", n, args[0])
		return nil
	},
}

func runServe() error {
	cfg := config.Load(configPath)
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run()
}

func openStore() (*store.KV, error) {
	cfg := config.Load(configPath)
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureStorePath(); err != nil {
		return nil, fmt.Errorf("ensure store path: %w", err)
	}
	return store.New(filepath.Join(cfg.StorePath, "regent.db"), log)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, exportCmd, importCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
