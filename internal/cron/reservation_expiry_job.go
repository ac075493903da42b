package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

// holdExpirer is the slice of the reservations service the job needs.
type holdExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// ReservationExpiryJobParams configure the hold expiry sweep.
type ReservationExpiryJobParams struct {
	Logger  *logger.Logger
	Expirer holdExpirer
	Now     func() time.Time
}

// NewReservationExpiryJob builds the job that releases lapsed pending
// holds and marks the reservations expired.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("reservation expirer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reservationExpiryJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		now:     now,
	}, nil
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	expirer holdExpirer
	now     func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.expirer.ExpireDue(ctx, j.now().UTC())
	logCtx := j.logg.WithField(ctx, "expired_count", expired)
	if err != nil {
		// Partial progress still counts; the error carries the stragglers.
		j.logg.Warn(logCtx, "expiry sweep finished with errors")
		return err
	}
	j.logg.Info(logCtx, "expiry sweep complete")
	return nil
}
