package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// Sink is one record-keeping destination for finalized conversations.
type Sink interface {
	Name() string
	Write(ctx context.Context, snap models.Snapshot) error
}

// Recorders fans a snapshot out to every sink in parallel.
type Recorders struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultSinkTimeout bounds each sink call.
const DefaultSinkTimeout = 15 * time.Second

func NewRecorders(logger *zap.Logger, sinks ...Sink) *Recorders {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorders{sinks: sinks, timeout: DefaultSinkTimeout, logger: logger.Named("sinks")}
}

// Len returns the number of sinks.
func (r *Recorders) Len() int {
	return len(r.sinks)
}

// Record returns one outcome per sink, in sink order. A failing or panicking sink does not
// stop the others.
func (r *Recorders) Record(ctx context.Context, snap models.Snapshot) []models.Outcome {
	outcomes := make([]models.Outcome, len(r.sinks))
	g, gctx := errgroup.WithContext(ctx)
	for i, sink := range r.sinks {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("sink panicked", zap.String("sink", sink.Name()), zap.Any("panic", p))
					outcomes[i] = models.Failed(sink.Name(), fmt.Errorf("panic: %v", p))
				}
			}()
			cctx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()
			if err := sink.Write(cctx, snap); err != nil {
				outcomes[i] = models.Failed(sink.Name(), err)
				return nil
			}
			outcomes[i] = models.Succeeded(sink.Name())
			r.logger.Debug("snapshot recorded", zap.String("sink", sink.Name()), zap.String("phone", snap.Phone))
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// SnapshotRow flattens a snapshot into spreadsheet cells.
func SnapshotRow(s models.Snapshot) []string {
	items := make([]string, 0, len(s.Cart))
	for _, it := range s.Cart {
		line := fmt.Sprintf("%s x%s", it.Name, strconv.FormatFloat(it.Qty, 'f', -1, 64))
		if it.Price != nil {
			line += fmt.Sprintf(" @%.2f", *it.Price)
		}
		items = append(items, line)
	}
	lat, lng := "", ""
	if s.Location != nil {
		lat = strconv.FormatFloat(s.Location.Latitude, 'f', 6, 64)
		lng = strconv.FormatFloat(s.Location.Longitude, 'f', 6, 64)
	}
	return []string{
		s.ClosedAt.UTC().Format(time.RFC3339),
		s.Phone,
		s.Slots.FullName,
		s.Slots.Region,
		s.Slots.SubRegion,
		s.Slots.Category,
		s.Slots.Quantity,
		s.Slots.Campaign,
		strings.Join(items, "; "),
		s.QuoteID,
		s.QuoteURL,
		lat,
		lng,
	}
}
