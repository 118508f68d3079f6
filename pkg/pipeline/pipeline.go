// Package pipeline runs a batch of region submissions through recognition,
// reconciliation and the ledger, reporting an outcome per entry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"menuprice/pkg/ledger"
	"menuprice/pkg/ocr"
	"menuprice/pkg/reconcile"
	"menuprice/pkg/region"
)

// ErrSuperseded marks an entry replaced by a later entry for the same region.
var ErrSuperseded = errors.New("superseded by a later entry for the same region")

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Recognizer is the part of ocr.Adapter the pipeline needs.
type Recognizer interface {
	Load(ctx context.Context, ref string) (*ocr.Image, error)
	RecognizeImage(ctx context.Context, img *ocr.Image, r region.Rect) ([]ocr.Token, error)
}

// Submission is one entry of a batch. RegionID selects an existing region;
// without it Rect selects the image's region with those coordinates, or a new
// one is added. Reject marks the region as not holding a price.
type Submission struct {
	RegionID      uuid.UUID
	Rect          *region.Rect
	OriginalPrice string
	NewPrice      string
	Reject        bool
}

// wantsRecognition reports whether a price is missing and has to come from OCR.
func (s Submission) wantsRecognition() bool {
	return s.NewPrice == "" || s.OriginalPrice == ""
}

// normalizeItems returns a copy of items with surrounding blanks removed from
// the prices, so a blank price counts as missing everywhere.
func normalizeItems(items []Submission) []Submission {
	out := make([]Submission, len(items))
	for i, it := range items {
		it.OriginalPrice = strings.TrimSpace(it.OriginalPrice)
		it.NewPrice = strings.TrimSpace(it.NewPrice)
		out[i] = it
	}
	return out
}

// Request is a batch of submissions for one image.
type Request struct {
	ImageID     uuid.UUID
	ImageRef    string
	SubmittedBy string
	Items       []Submission
}

// Outcome reports what happened to one submission, in request order.
type Outcome struct {
	Index       int               `json:"index"`
	RegionID    uuid.UUID         `json:"region_id"`
	Status      Status            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	Message     string            `json:"message,omitempty"`
	PriceUpdate *ledger.Persisted `json:"price_update,omitempty"`
	Err         error             `json:"-"`
}

type Result struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Outcomes []Outcome `json:"results"`
}

type Pipeline struct {
	Regions region.Store
	Ledger  ledger.Ledger
	OCR     Recognizer
	Locker  *reconcile.Locker
	// Workers bounds how many regions of a batch are reconciled at once.
	Workers int
	Logger  *slog.Logger
}

func New(regions region.Store, led ledger.Ledger, rec Recognizer) *Pipeline {
	return &Pipeline{
		Regions: regions,
		Ledger:  led,
		OCR:     rec,
		Locker:  reconcile.NewLocker(),
		Workers: runtime.NumCPU(),
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Submit reconciles every entry of req. Failures are per entry; Submit itself
// never fails. Cancelling ctx stops entries that have not started and keeps
// updates already committed.
func (p *Pipeline) Submit(ctx context.Context, req Request) Result {
	start := time.Now()
	req.Items = normalizeItems(req.Items)
	res := Result{BatchID: uuid.New(), Outcomes: make([]Outcome, len(req.Items))}
	regs := make([]region.Region, len(req.Items))
	for i, item := range req.Items {
		res.Outcomes[i].Index = i
		if err := ctx.Err(); err != nil {
			p.fail(&res.Outcomes[i], err)
			continue
		}
		reg, err := p.resolve(ctx, req.ImageID, item)
		if err != nil {
			p.fail(&res.Outcomes[i], err)
			continue
		}
		regs[i] = reg
		res.Outcomes[i].RegionID = reg.ID
	}

	// last entry per region wins
	last := make(map[uuid.UUID]int)
	for i, o := range res.Outcomes {
		if o.Err == nil {
			last[o.RegionID] = i
		}
	}
	var work []int
	needImage := false
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		if o.Err != nil {
			continue
		}
		if last[o.RegionID] != i {
			p.fail(o, ErrSuperseded)
			continue
		}
		work = append(work, i)
		item := req.Items[i]
		if !item.Reject && item.wantsRecognition() {
			needImage = true
		}
	}

	var img *ocr.Image
	if needImage && req.ImageRef != "" && p.OCR != nil && ctx.Err() == nil {
		var err error
		if img, err = p.OCR.Load(ctx, req.ImageRef); err != nil {
			p.logger().Warn("image unavailable for recognition", "image", req.ImageID, "ref", req.ImageRef, "err", err)
			img = nil
		}
	}

	var g errgroup.Group
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}
	for _, i := range work {
		g.Go(func() error {
			o := &res.Outcomes[i]
			if err := ctx.Err(); err != nil {
				p.fail(o, err)
				return nil
			}
			p.process(ctx, req, res.BatchID, regs[i].ID, req.Items[i], img, o)
			return nil
		})
	}
	_ = g.Wait()

	p.summarize(req, res, time.Since(start))
	return res
}

// resolve finds or creates the region an entry refers to.
func (p *Pipeline) resolve(ctx context.Context, imageID uuid.UUID, item Submission) (region.Region, error) {
	if item.RegionID != uuid.Nil {
		reg, err := p.Regions.Get(ctx, item.RegionID)
		if err != nil {
			return region.Region{}, err
		}
		if reg.ImageID != imageID {
			return region.Region{}, fmt.Errorf("%w: %s does not belong to image %s", region.ErrRegionNotFound, item.RegionID, imageID)
		}
		return reg, nil
	}
	if item.Rect == nil {
		return region.Region{}, fmt.Errorf("%w: entry has neither region id nor coordinates", region.ErrInvalidGeometry)
	}
	reg, err := p.Regions.FindByRect(ctx, imageID, *item.Rect)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, region.ErrRegionNotFound) {
		return region.Region{}, err
	}
	return p.Regions.Add(ctx, imageID, *item.Rect)
}

func (p *Pipeline) process(ctx context.Context, req Request, batchID, regionID uuid.UUID, item Submission, img *ocr.Image, o *Outcome) {
	unlock := p.Locker.Lock(regionID)
	defer unlock()
	if err := ctx.Err(); err != nil {
		p.fail(o, err)
		return
	}

	reg, err := p.Regions.Get(ctx, regionID)
	if err != nil {
		p.fail(o, err)
		return
	}
	if reg.State != region.StateSubmitted {
		if reg, err = p.Regions.Transition(ctx, regionID, region.StateSubmitted); err != nil {
			p.fail(o, err)
			return
		}
	}
	if item.Reject {
		if _, err := p.Regions.Transition(ctx, regionID, region.StateRejected); err != nil {
			p.fail(o, err)
			return
		}
		o.Status = StatusRejected
		return
	}

	var tokens []ocr.Token
	if img != nil && item.wantsRecognition() {
		if tokens, err = p.OCR.RecognizeImage(ctx, img, reg.Rect); err != nil {
			p.fail(o, err)
			return
		}
		if err := ctx.Err(); err != nil {
			p.fail(o, err)
			return
		}
	}

	var prior *string
	latest, err := p.Ledger.LatestForRegion(ctx, regionID)
	if err != nil {
		p.fail(o, err)
		return
	}
	if latest != nil {
		prior = &latest.NewPrice
	}

	d, err := reconcile.Decide(reconcile.Input{
		Region:     reg,
		Tokens:     tokens,
		Correction: reconcile.Correction{OriginalPrice: item.OriginalPrice, NewPrice: item.NewPrice},
		Prior:      prior,
	})
	if err != nil {
		p.fail(o, err)
		return
	}

	persisted, err := p.Ledger.Commit(ctx, ledger.PriceUpdate{
		ImageID:       req.ImageID,
		RegionID:      regionID,
		BatchID:       batchID,
		OriginalPrice: d.OriginalPrice,
		NewPrice:      d.NewPrice,
		Rect:          d.Rect,
		Source:        string(d.Source),
		Confidence:    d.Confidence,
		SubmittedBy:   req.SubmittedBy,
	})
	if err != nil {
		p.fail(o, err)
		return
	}
	o.PriceUpdate = &persisted
	o.Status = StatusAccepted
	// committed; resolve even if the batch was cancelled meanwhile
	if _, err := p.Regions.Transition(context.WithoutCancel(ctx), regionID, region.StateResolved); err != nil {
		p.logger().Warn("region not resolved after commit", "region", regionID, "update", persisted.ID, "error", err)
	}
}

// MoveRegion changes a region's coordinates. It waits for any in-flight
// reconciliation of the region so a move never lands between commit and resolve.
func (p *Pipeline) MoveRegion(ctx context.Context, regionID uuid.UUID, r region.Rect) (region.Region, error) {
	unlock := p.Locker.Lock(regionID)
	defer unlock()
	return p.Regions.Move(ctx, regionID, r)
}

// RemoveRegion deletes a region under the same lock as MoveRegion.
func (p *Pipeline) RemoveRegion(ctx context.Context, regionID uuid.UUID) error {
	unlock := p.Locker.Lock(regionID)
	defer unlock()
	return p.Regions.Remove(ctx, regionID)
}

func (p *Pipeline) fail(o *Outcome, err error) {
	o.Status = StatusFailed
	o.Err = err
	o.Reason = ReasonCode(err)
	o.Message = err.Error()
}

func (p *Pipeline) summarize(req Request, res Result, elapsed time.Duration) {
	counts := map[Status]int{}
	reasons := map[string]int{}
	for _, o := range res.Outcomes {
		counts[o.Status]++
		if o.Reason != "" {
			reasons[o.Reason]++
		}
	}
	p.logger().Info("price batch reconciled",
		"batch", res.BatchID,
		"image", req.ImageID,
		"entries", len(res.Outcomes),
		"accepted", counts[StatusAccepted],
		"rejected", counts[StatusRejected],
		"failed", counts[StatusFailed],
		"reasons", reasons,
		"elapsed", elapsed,
	)
}
