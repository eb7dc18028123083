package dispatch

import (
	"context"
	"errors"
	"fmt"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/ports/dispatchtx"
)

// ManualReassign hands an order to a chosen shipper, bypassing round robin.
// Any pending timeout is cancelled, the open offer is closed as a manual
// override and a fresh timeout is armed for the new offer.
func (s *Service) ManualReassign(ctx context.Context, orderID, shipperID int64, notes string) (domain.AssignResult, error) {
	if orderID <= 0 || shipperID <= 0 {
		return domain.AssignResult{}, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		res  domain.AssignResult
		prev *int64
	)
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if o.Status.Terminal() {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, apperr.ErrConflict)
		}
		target, err := lockShippers(ctx, tx, shipperID, o.ShipperID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("shipper %d: %w", shipperID, apperr.ErrNotFound)
		}

		now := s.now()
		if o.ShipperID != nil {
			old := *o.ShipperID
			prev = &old
			if o.ReassignmentJobID != nil {
				if _, err := s.scheduler.Cancel(ctx, tx, *o.ReassignmentJobID); err != nil {
					return err
				}
			}
			if _, err := tx.CloseOpenHistory(ctx, o.ID, old, domain.ResponseManualReassign, now, notes); err != nil {
				return err
			}
			ok, err := tx.ClearAssignment(ctx, o.ID, o.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errLostRace
			}
			o.Version++
			reason := unassignedPayload{OrderCode: o.Code, PreviousShipperID: old, Reason: "manual"}
			if err := appendEvent(ctx, tx, domain.EventUnassigned, domain.SeverityInfo, o.ID, &old, reason, now); err != nil {
				return err
			}
		}

		res, err = s.offerTx(ctx, tx, o, *target, now, manualNote(notes))
		if err != nil {
			return err
		}
		if prev != nil {
			if _, err := tx.RecomputeLoad(ctx, *prev); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, errLostRace):
		return domain.AssignResult{OrderID: orderID, Outcome: domain.OutcomeStale}, nil
	case err != nil:
		return domain.AssignResult{}, err
	}

	s.metrics.Offer(res.Outcome)
	fields := []logx.Field{
		logx.String("event", "order_manually_reassigned"),
		logx.Int64("order_id", orderID),
		logx.Int64("shipper_id", shipperID),
	}
	if prev != nil {
		fields = append(fields, logx.Int64("previous_shipper_id", *prev))
	}
	s.logger.Info("order manually reassigned", fields...)
	return res, nil
}

// lockShippers locks the target and the previous shipper rows before any write,
// lowest id first, matching the order ListEligibleShippersForUpdate locks in.
// It returns the target profile, nil when it does not exist.
func lockShippers(ctx context.Context, tx dispatchtx.Repository, target int64, prev *int64) (*domain.ShipperProfile, error) {
	ids := []int64{target}
	if prev != nil && *prev != target {
		if *prev < target {
			ids = []int64{*prev, target}
		} else {
			ids = append(ids, *prev)
		}
	}
	var found *domain.ShipperProfile
	for _, id := range ids {
		sh, err := tx.GetShipperForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if id == target {
			found = sh
		}
	}
	return found, nil
}

func manualNote(notes string) string {
	if notes == "" {
		return "manual"
	}
	return "manual: " + notes
}

// OnOrderTerminal reacts to an order leaving active delivery. A pending offer is
// withdrawn and the assigned shipper's load is recomputed from order state.
func (s *Service) OnOrderTerminal(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	if orderID <= 0 || !status.Terminal() {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		shipperID int64
		withdrawn bool
		load      int
	)
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if o.ShipperID == nil {
			return nil
		}
		shipperID = *o.ShipperID
		now := s.now()

		if o.ShipperStatus == domain.ShipperOffered {
			if o.ReassignmentJobID != nil {
				if _, err := s.scheduler.Cancel(ctx, tx, *o.ReassignmentJobID); err != nil {
					return err
				}
			}
			note := "order " + string(status)
			if _, err := tx.CloseOpenHistory(ctx, o.ID, shipperID, domain.ResponseManualReassign, now, note); err != nil {
				return err
			}
			ok, err := tx.ClearAssignment(ctx, o.ID, o.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errLostRace
			}
			payload := unassignedPayload{OrderCode: o.Code, PreviousShipperID: shipperID, Reason: note}
			if err := appendEvent(ctx, tx, domain.EventUnassigned, domain.SeverityInfo, o.ID, &shipperID, payload, now); err != nil {
				return err
			}
			withdrawn = true
		}

		load, err = tx.RecomputeLoad(ctx, shipperID)
		return err
	})
	if err != nil {
		return err
	}
	if shipperID == 0 {
		return nil
	}

	s.logger.Info("order left active delivery",
		logx.String("event", "order_terminal"),
		logx.Int64("order_id", orderID),
		logx.Int64("shipper_id", shipperID),
		logx.String("status", string(status)),
		logx.Bool("offer_withdrawn", withdrawn),
		logx.Int("active_orders", load),
	)
	return nil
}
