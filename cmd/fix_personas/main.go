package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/VictorGoic0/SpendSense/internal/data/db"
	"github.com/VictorGoic0/SpendSense/internal/data/repos"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
	"github.com/VictorGoic0/SpendSense/internal/platform/envutil"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// Repairs the legacy general_wellness persona rows left behind by early
// assignment runs. Each one becomes a savings_builder fallback at the
// confidence tier matching whether features exist for the pair, with the
// migration recorded in the reasoning trace. Also reports any (user, window)
// feature snapshots that have no persona at all.
func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbService, err := db.NewService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	thePG := dbService.DB()

	featureRepo := repos.NewFeatureSnapshotRepo(thePG, log)
	personaRepo := repos.NewPersonaAssignmentRepo(thePG, log)

	ctx := context.Background()

	stale, err := personaRepo.ListByType(dbctx.Context{Ctx: ctx}, types.PersonaGeneralWellness)
	if err != nil {
		log.Error("Failed to list legacy personas", "error", err)
		os.Exit(1)
	}
	log.Info("Legacy persona scan", "found", len(stale))

	migrated := 0
	err = thePG.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := time.Now().UTC()

		for _, row := range stale {
			features, err := featureRepo.GetByUserWindow(dbc, row.UserID, row.WindowDays)
			if err != nil {
				return err
			}

			confidence := 0.1
			reason := "No features computed for this user/window - fallback assignment"
			if features != nil {
				confidence = 0.2
				reason = "No persona criteria matched - fallback assignment"
			}

			trace := types.DecodeReasoningTrace(row.Reasoning)
			trace.Reason = fmt.Sprintf("%s (migrated from legacy %q at %s)",
				reason, types.PersonaGeneralWellness, now.Format(time.RFC3339))
			trace.MatchedCriteria = []string{}
			trace.Timestamp = now.Format(time.RFC3339)

			row.PersonaType = types.PersonaSavingsBuilder
			row.ConfidenceScore = confidence
			row.AssignedAt = now
			row.Reasoning = types.EncodeReasoningTrace(trace)

			if err := personaRepo.Update(dbc, row); err != nil {
				return err
			}
			log.Info("Migrated legacy persona",
				"user_id", row.UserID,
				"window_days", row.WindowDays,
				"confidence", confidence,
			)
			migrated++
		}
		return nil
	})
	if err != nil {
		log.Error("Migration failed; nothing committed", "error", err)
		os.Exit(1)
	}
	log.Info("Migration complete", "migrated", migrated)

	// Pairing check: every feature snapshot should have a persona.
	dbc := dbctx.Context{Ctx: ctx}
	missing := 0
	for _, window := range []int{30, 180} {
		snapshots, err := featureRepo.ListByWindow(dbc, window)
		if err != nil {
			log.Error("Failed to list feature snapshots", "window_days", window, "error", err)
			os.Exit(1)
		}
		for _, snap := range snapshots {
			persona, err := personaRepo.GetByUserWindow(dbc, snap.UserID, snap.WindowDays)
			if err != nil {
				log.Error("Persona lookup failed", "user_id", snap.UserID, "error", err)
				os.Exit(1)
			}
			if persona == nil {
				log.Warn("Feature snapshot has no persona; run persona assignment",
					"user_id", snap.UserID,
					"window_days", snap.WindowDays,
				)
				missing++
			}
		}
	}
	if missing == 0 {
		log.Info("All feature snapshots have personas assigned")
	} else {
		log.Warn("Unpaired feature snapshots found", "count", missing)
	}
}
