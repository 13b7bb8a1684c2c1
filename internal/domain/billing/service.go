package billing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/cbsbilling/internal/calendar"
	"github.com/rpggio/cbsbilling/internal/domain/project"
	"github.com/rpggio/cbsbilling/internal/domain/record"
	"github.com/rpggio/cbsbilling/internal/domain/user"
)

const defaultWorkers = 4

// Service runs billing over the events of an EventSource.
type Service struct {
	source   EventSource
	renderer Renderer
	policy   Policy
	workers  int
	logger   *slog.Logger
}

// NewService creates a billing service. Bills are rendered by up to workers
// goroutines.
func NewService(source EventSource, renderer Renderer, policy Policy, workers int, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		source:   source,
		renderer: renderer,
		policy:   policy,
		workers:  workers,
		logger:   logger,
	}
}

// Policy returns the service's billing policy.
func (s *Service) Policy() Policy { return s.policy }

// QuarterRun is the billable part of one quarter.
type QuarterRun struct {
	ID           string
	QuarterStart time.Time
	QuarterEnd   time.Time
	// Records holds the billable records, ordered by open date.
	Records []*record.ProjectRecord
	// Rows holds one summary row per record in Records.
	Rows []SummaryRow
}

// Bill is one rendered invoice.
type Bill struct {
	PILastName string
	FileName   string
	Content    []byte
}

// Records rebuilds the project records for the window [start, end].
func (s *Service) Records(ctx context.Context, start, end time.Time) ([]*record.ProjectRecord, error) {
	start, end = calendar.DateOf(start), calendar.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: window ends %s before it starts %s",
			ErrInvalidInput, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	ev, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	projects, accountEvents, err := project.Reconstruct(ev.piRequests, ev.piUpdates, start, end)
	if err != nil {
		return nil, fmt.Errorf("reconstruct projects: %w", err)
	}
	users, err := user.Reconstruct(ev.accountRequests, ev.accountUpdates, start, end, accountEvents, s.logger)
	if err != nil {
		return nil, fmt.Errorf("reconstruct users: %w", err)
	}
	if err := record.CheckAllPowerUsers(users, projects, start, end); err != nil {
		return nil, err
	}

	records := record.BuildRecords(projects, users)
	s.logger.Debug("built project records",
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
		"projects", len(projects),
		"users", len(users))
	return records, nil
}

// Quarter prices every billable record for the quarter starting qs.
func (s *Service) Quarter(ctx context.Context, qs time.Time) (*QuarterRun, error) {
	qs = calendar.DateOf(qs)
	run := &QuarterRun{
		ID:           uuid.NewString(),
		QuarterStart: qs,
		QuarterEnd:   s.policy.QuarterEnd(qs),
	}
	logger := s.logger.With("run_id", run.ID)

	records, err := s.Records(ctx, run.QuarterStart, run.QuarterEnd)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if !s.policy.IsBillable(rec, qs) {
			logger.Debug("skipping project not billable this quarter",
				"pi", rec.PILastName(),
				"opened", rec.StorageStart().Format(time.DateOnly))
			continue
		}
		row, err := s.summarize(rec, qs)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", rec.PILastName(), err)
		}
		run.Records = append(run.Records, rec)
		run.Rows = append(run.Rows, row)
	}

	logger.Info("priced quarter",
		"quarter_start", qs.Format(time.DateOnly),
		"records", len(records),
		"billable", len(run.Records))
	return run, nil
}

// Bills renders an invoice for every record of run, in record order.
func (s *Service) Bills(ctx context.Context, run *QuarterRun) ([]Bill, error) {
	names := billFileNames(run)
	bills := make([]Bill, len(run.Records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range run.Records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := s.policy.RenderInvoice(&buf, rec, run.QuarterStart, s.renderer); err != nil {
				return err
			}
			bills[i] = Bill{PILastName: rec.PILastName(), FileName: names[i], Content: buf.Bytes()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bills, nil
}

// Invoices renders the invoices of the PI's billable projects for the
// quarter starting qs.
func (s *Service) Invoices(ctx context.Context, qs time.Time, piLastName string) ([]Bill, error) {
	run, err := s.Quarter(ctx, qs)
	if err != nil {
		return nil, err
	}

	filtered := &QuarterRun{ID: run.ID, QuarterStart: run.QuarterStart, QuarterEnd: run.QuarterEnd}
	for i, rec := range run.Records {
		if rec.PILastName() == piLastName {
			filtered.Records = append(filtered.Records, rec)
			filtered.Rows = append(filtered.Rows, run.Rows[i])
		}
	}
	if len(filtered.Records) == 0 {
		return nil, fmt.Errorf("%w for PI %q in quarter %s", ErrNoBillableProject, piLastName, run.QuarterStart.Format(time.DateOnly))
	}
	return s.Bills(ctx, filtered)
}

// WriteQuarter bills the quarter starting qs into outDir: one .tex file per
// billable record and a summary CSV. Nothing is written unless every bill
// renders.
func (s *Service) WriteQuarter(ctx context.Context, qs time.Time, outDir string) (*QuarterRun, error) {
	if outDir == "" {
		return nil, fmt.Errorf("%w: output directory required", ErrInvalidInput)
	}
	run, err := s.Quarter(ctx, qs)
	if err != nil {
		return nil, err
	}
	bills, err := s.Bills(ctx, run)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	for _, b := range bills {
		if err := os.WriteFile(filepath.Join(outDir, b.FileName), b.Content, 0o644); err != nil {
			return nil, fmt.Errorf("write bill %s: %w", b.FileName, err)
		}
	}

	summaryPath := filepath.Join(outDir, SummaryFileName(run.QuarterStart))
	f, err := os.Create(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("create summary: %w", err)
	}
	if err := WriteSummary(f, run.Rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close summary: %w", err)
	}

	s.logger.Info("wrote quarter bills",
		"run_id", run.ID,
		"out_dir", outDir,
		"bills", len(bills),
		"summary", summaryPath)
	return run, nil
}

// PowerUsers lists every power user enumerated by every record in the window
// [start, end]. A user appears once per record that reports them.
func (s *Service) PowerUsers(ctx context.Context, start, end time.Time) ([]PowerUserEntry, error) {
	records, err := s.Records(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var out []PowerUserEntry
	for _, rec := range records {
		users, err := rec.EnumeratePowerUsers(start, end)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			out = append(out, PowerUserEntry{Name: u.Name(), Email: u.Email(), PILastName: rec.PILastName()})
		}
	}
	return out, nil
}

func (s *Service) summarize(rec record.BillableProjectRecord, qs time.Time) (SummaryRow, error) {
	amount, err := s.policy.QuarterlyStorageAmount(rec, qs)
	if err != nil {
		return SummaryRow{}, err
	}
	storagePrice, err := s.policy.QuarterlyStoragePrice(rec, qs)
	if err != nil {
		return SummaryRow{}, err
	}
	prices, err := s.policy.EnumeratePowerUserPrices(rec, qs)
	if err != nil {
		return SummaryRow{}, err
	}

	billed, powerPrice := 0, 0.0
	for _, pp := range prices {
		if pp.Price > 0 {
			billed++
			powerPrice += pp.Price
		}
	}

	sample := s.policy.QuarterEnd(qs)
	if closed, ok := rec.CloseDate(); ok {
		sample = calendar.Min(sample, closed)
	}
	speedCode, err := rec.SpeedCode(sample)
	if err != nil {
		return SummaryRow{}, err
	}

	return SummaryRow{
		PI:              rec.PIFullName(),
		PILastName:      rec.PILastName(),
		Storage:         amount,
		StoragePrice:    storagePrice,
		PowerUsers:      billed,
		PowerUsersPrice: powerPrice,
		TotalPrice:      storagePrice + powerPrice,
		SpeedCode:       speedCode,
	}, nil
}

type events struct {
	accountRequests []user.AccountRequest
	accountUpdates  []user.AccountUpdate
	piRequests      []project.PIRequest
	piUpdates       []project.PIUpdate
}

// load reads the four tables concurrently.
func (s *Service) load(ctx context.Context) (events, error) {
	var ev events
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if ev.accountRequests, err = s.source.AccountRequests(ctx); err != nil {
			return fmt.Errorf("load account requests: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ev.accountUpdates, err = s.source.AccountUpdates(ctx); err != nil {
			return fmt.Errorf("load account updates: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ev.piRequests, err = s.source.PIRequests(ctx); err != nil {
			return fmt.Errorf("load PI requests: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if ev.piUpdates, err = s.source.PIUpdates(ctx); err != nil {
			return fmt.Errorf("load PI updates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return events{}, err
	}
	return ev, nil
}
