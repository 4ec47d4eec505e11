package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"coinfm/config"
	"coinfm/db"
	"coinfm/model"
	"coinfm/repository"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the track catalog from a JSON file",
	Long:  `Load a JSON array of tracks into the catalog. Existing tracks are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		if seedFile == "" {
			log.Fatal("A seed file is required (--file)")
		}

		cfg := config.Load()
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}

		data, err := os.ReadFile(seedFile)
		if err != nil {
			log.Fatalf("Failed to read seed file: %v", err)
		}

		var tracks []model.Track
		if err := json.Unmarshal(data, &tracks); err != nil {
			log.Fatalf("Failed to parse seed file: %v", err)
		}

		trackRepo := repository.NewTrackRepository(db.GormDB)
		var created int
		for i := range tracks {
			if _, err := trackRepo.CreateTrack(&tracks[i]); err != nil {
				log.Printf("Skipping track %q: %v", tracks[i].Title, err)
				continue
			}
			created++
		}

		fmt.Printf("Seeded %d of %d tracks.\n", created, len(tracks))
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Path to the JSON seed file")
}
