package handlers

import (
	"context"

	"github.com/vthunder/timebox/internal/parking"
	"github.com/vthunder/timebox/internal/router"
)

// ParkingHandler captures a stray thought in one shot. It never holds
// the session lock; the acknowledgement is the whole exchange.
type ParkingHandler struct {
	parking *parking.Service
}

func NewParkingHandler(svc *parking.Service) *ParkingHandler {
	return &ParkingHandler{parking: svc}
}

func (h *ParkingHandler) Name() string { return "PARKING" }

func (h *ParkingHandler) Handle(ctx context.Context, input string) (router.Envelope, error) {
	ack := h.parking.Dispatch(input, parking.TypeSearch, "router", true)
	return router.Envelope{Content: ack, Status: router.StatusFinished}, nil
}
