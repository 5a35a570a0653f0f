package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/regdesk/catreport_backend/config"
	"github.com/regdesk/catreport_backend/models"
)

// Administrative retry tool: clears a batch's verdict fields from the given
// stage onward so the pollers pick it up again. The pipeline itself never
// retries a failed batch; this is the only sanctioned way back in.

func main() {
	batchId := flag.Int("batch-id", 0, "Required: id of the batch to re-enter the pipeline")
	fromStage := flag.Int("from-stage", 1, "Stage to restart from (1, 2 or 3)")
	flag.Parse()

	if *batchId <= 0 {
		fmt.Fprintln(os.Stderr, "--batch-id is required")
		os.Exit(1)
	}
	if *fromStage < models.StageValidation1 || *fromStage > models.StageValidation3 {
		fmt.Fprintln(os.Stderr, "--from-stage must be 1, 2 or 3")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx := context.Background()
	batch, err := models.GetBatch(ctx, db, *batchId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch %d not found: %v\n", *batchId, err)
		os.Exit(1)
	}

	if err := batch.ResetStageFields(db, *fromStage); err != nil {
		fmt.Fprintf(os.Stderr, "reset batch %d: %v\n", *batchId, err)
		os.Exit(1)
	}

	fmt.Printf("batch %d (firm %s, %s, %d records) reset from stage %d; next validation tick will pick it up\n",
		batch.ID, batch.FirmId, batch.FileType, batch.TotalRecords, *fromStage)
}
