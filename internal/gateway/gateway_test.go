package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
	"github.com/coachpo/ladder/internal/slots"
)

type recordingService struct {
	submits []schema.SubmitRequest
	cancels []schema.CancelRequest
	at      []time.Time
	reject  error
}

func (s *recordingService) SubmitOrder(_ context.Context, req schema.SubmitRequest) (schema.SubmitReceipt, error) {
	s.submits = append(s.submits, req)
	s.at = append(s.at, time.Now())
	if s.reject != nil {
		return schema.SubmitReceipt{}, s.reject
	}
	return schema.SubmitReceipt{TxHash: "0xabc"}, nil
}

func (s *recordingService) CancelOrder(_ context.Context, req schema.CancelRequest) error {
	s.cancels = append(s.cancels, req)
	return nil
}

func TestSubmitBuildsRequestAndSlot(t *testing.T) {
	svc := &recordingService{}
	g := New(svc, slots.NewTracker(30000), Options{Venue: "lighter", MarketID: 1})
	slot, err := g.Submit(context.Background(), Order{Price: 9980, Side: schema.SideAsk, Size: 500, TimeInForce: schema.TIFPostOnly})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(svc.submits) != 1 {
		t.Fatalf("submits = %d", len(svc.submits))
	}
	req := svc.submits[0]
	if req.MarketID != 1 || req.ClientOrderID != 30000 || req.BaseAmount != 500 || req.Price != 9980 || !req.IsAsk {
		t.Fatalf("request = %+v", req)
	}
	if req.Type != schema.OrderTypeLimit || req.TimeInForce != schema.TIFPostOnly {
		t.Fatalf("request type = %s/%s", req.Type, req.TimeInForce)
	}
	if slot.ClientOrderID != 30000 || slot.TxHash != "0xabc" || slot.PlacedAt.IsZero() {
		t.Fatalf("slot = %+v", slot)
	}
}

func TestRejectedSubmissionConsumesID(t *testing.T) {
	tracker := slots.NewTracker(1)
	svc := &recordingService{reject: errs.SubmissionRejected("lighter", "post-only would cross", nil)}
	g := New(svc, tracker, Options{Venue: "lighter"})
	_, err := g.Submit(context.Background(), Order{Price: 10, Side: schema.SideBid, Size: 1, TimeInForce: schema.TIFPostOnly})
	if !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("err = %v", err)
	}
	if tracker.NextClientOrderID() != 2 {
		t.Fatalf("rejected id was not consumed")
	}

	svc.reject = errors.New("opaque")
	_, err = g.Submit(context.Background(), Order{Price: 10, Side: schema.SideBid, Size: 1, TimeInForce: schema.TIFPostOnly})
	if !errs.Is(err, errs.CanonicalSubmissionRejected) {
		t.Fatalf("opaque error not classified: %v", err)
	}
	if svc.submits[1].ClientOrderID != 2 {
		t.Fatalf("second submission reused id %d", svc.submits[1].ClientOrderID)
	}
}

func TestInvalidOrderNeverReachesVenue(t *testing.T) {
	svc := &recordingService{}
	tracker := slots.NewTracker(1)
	g := New(svc, tracker, Options{})
	bad := []Order{
		{Price: 10, Side: schema.SideBid, Size: 0, TimeInForce: schema.TIFPostOnly},
		{Price: 0, Side: schema.SideBid, Size: 1, TimeInForce: schema.TIFPostOnly},
		{Price: 10, Side: schema.SideUnknown, Size: 1, TimeInForce: schema.TIFPostOnly},
		{Price: 10, Side: schema.SideBid, Size: 1, TimeInForce: "FOK"},
	}
	for _, o := range bad {
		if _, err := g.Submit(context.Background(), o); !errs.Is(err, errs.CanonicalSubmissionRejected) {
			t.Fatalf("%s: err = %v", o, err)
		}
	}
	if len(svc.submits) != 0 || tracker.NextClientOrderID() != 1 {
		t.Fatalf("invalid orders were submitted")
	}
}

func TestSubmissionsAreSpaced(t *testing.T) {
	svc := &recordingService{}
	g := New(svc, slots.NewTracker(1), Options{Spacing: 40 * time.Millisecond})
	for i := 0; i < 3; i++ {
		if _, err := g.Submit(context.Background(), Order{Price: schema.Ticks(10 + i), Side: schema.SideBid, Size: 1, TimeInForce: schema.TIFPostOnly}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	for i := 1; i < len(svc.at); i++ {
		if gap := svc.at[i].Sub(svc.at[i-1]); gap < 30*time.Millisecond {
			t.Fatalf("gap %d = %s below spacing", i, gap)
		}
	}
}

func TestSpacingWaitHonoursContext(t *testing.T) {
	svc := &recordingService{}
	g := New(svc, slots.NewTracker(1), Options{Spacing: time.Hour})
	order := Order{Price: 10, Side: schema.SideBid, Size: 1, TimeInForce: schema.TIFPostOnly}
	if _, err := g.Submit(context.Background(), order); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Submit(ctx, order); err == nil {
		t.Fatalf("expected spacing wait to fail on deadline")
	}
	if len(svc.submits) != 1 {
		t.Fatalf("second submission reached venue")
	}
}

func TestCancel(t *testing.T) {
	svc := &recordingService{}
	g := New(svc, slots.NewTracker(1), Options{MarketID: 3})
	if err := g.Cancel(context.Background(), schema.OrderSlot{ClientOrderID: 42}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(svc.cancels) != 1 || svc.cancels[0] != (schema.CancelRequest{MarketID: 3, ClientOrderID: 42}) {
		t.Fatalf("cancels = %+v", svc.cancels)
	}
}
