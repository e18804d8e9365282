package main

import (
	"log"
	"os"
)

func main() {
	cfg := LoadConfig()
	appliedTimeout := configureExternalHTTPClient(cfg.HTTPTimeoutSeconds)
	log.Printf("Config loaded. DB=%s Schedule=%q Timezone=%s HTTPTimeout=%s",
		cfg.DBPath, cfg.SyncSchedule, cfg.Timezone, appliedTimeout)

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	archive := NewArchiveClient(cfg.ArchiveAPIBase)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "seed":
			if err := Seed(cfg, db, archive); err != nil {
				log.Fatalf("Seed failed: %v", err)
			}
		case "reset":
			if err := ResetAll(db); err != nil {
				log.Fatalf("Reset failed: %v", err)
			}
			log.Println("All records and watermarks cleared")
		case "sync":
			NewSyncer(cfg, db, archive, NewNotifier(cfg)).RunCycle()
		default:
			log.Fatalf("Unknown command %q (expected seed, reset or sync)", os.Args[1])
		}
		return
	}

	syncer := NewSyncer(cfg, db, archive, NewNotifier(cfg))
	StartSyncScheduler(cfg, syncer)

	log.Println("Starting episync...")
	select {}
}
