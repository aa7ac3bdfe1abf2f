package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/record365/sign-server-go/internal/repository"
)

const reconcileBatchSize = 100

// ReconcileJob repairs completed signature requests whose rental mirror
// is missing. The submission path mirrors transactionally, so this only
// picks up rows completed out of band (manual fixes, migrations).
type ReconcileJob struct {
	requests repository.SignatureRequestRepository
	rentals  repository.RentalRepository
	interval time.Duration
	done     chan struct{}
}

func NewReconcileJob(
	requests repository.SignatureRequestRepository,
	rentals repository.RentalRepository,
	interval time.Duration,
) *ReconcileJob {
	return &ReconcileJob{
		requests: requests,
		rentals:  rentals,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *ReconcileJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("mirror reconcile job started")
}

func (j *ReconcileJob) Stop() {
	close(j.done)
	log.Info().Msg("mirror reconcile job stopped")
}

func (j *ReconcileJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.reconcile()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.reconcile()
		}
	}
}

func (j *ReconcileJob) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reqs, err := j.requests.FindUnmirrored(ctx, reconcileBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to list unmirrored signature requests")
		return
	}

	mirrored := 0
	for _, req := range reqs {
		if req.CompletedAt == nil || len(req.Signature) == 0 {
			log.Warn().Str("signId", req.ID).Msg("completed request missing signature data, skipping mirror")
			continue
		}

		summaryJSON, err := json.Marshal(req.Summary(*req.CompletedAt))
		if err != nil {
			log.Error().Err(err).Str("signId", req.ID).Msg("failed to marshal request summary")
			continue
		}

		if err := j.rentals.MirrorSignature(ctx, req.RentalID, req.Signature, summaryJSON); err != nil {
			log.Error().Err(err).Str("signId", req.ID).Str("rentalId", req.RentalID).Msg("failed to mirror signature onto rental")
			continue
		}
		if err := j.requests.MarkMirrored(ctx, req.ID); err != nil {
			log.Error().Err(err).Str("signId", req.ID).Msg("failed to mark signature request mirrored")
			continue
		}
		mirrored++
	}

	if mirrored > 0 {
		log.Info().Int("count", mirrored).Msg("reconciled signature mirrors")
	}
}
