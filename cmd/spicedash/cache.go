package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/cli"
	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the cache directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List cache artifacts and whether they are present",
		RunE:  runCacheStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cache artifact",
		RunE:  runCacheClear,
	})
	return cmd
}

func openStore() (*cache.Store, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return cache.New(settings.CacheDir, slog.Default())
}

func runCacheStatus(_ *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatTitle("Cache " + store.Dir()))
	rows := [][]string{}
	for _, st := range store.Status() {
		present := "no"
		if st.Present {
			present = "yes"
		}
		rows = append(rows, []string{st.File(), present, strconv.FormatInt(st.Size, 10)})
	}
	cli.RenderTable(os.Stdout, []string{"Artifact", "Present", "Bytes"}, rows)
	if store.Exists() {
		fmt.Println(cli.FormatSuccess("Cache is complete"))
	} else {
		fmt.Println(cli.FormatWarning("Cache is incomplete; run spicedash warm"))
	}
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println(cli.FormatSuccess("Cleared " + store.Dir()))
	return nil
}
