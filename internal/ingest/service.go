package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Ledger entry categories produced by ingestion.
const (
	CategoryBudget      = "Orçamento"
	CategoryContract    = "Contrato"
	CategoryMaterials   = "Materiais"
	CategoryMeasurement = "Medição"
	CategoryLabor       = "Mão de Obra"
)

// batchLimit bounds concurrent store writes; items are independent per dedup
// key, so the batch is embarrassingly parallel.
const batchLimit = 8

// SourceResult counts outcomes for one upstream collection.
type SourceResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Result is the outcome of one ingestion run. A failed item never aborts the
// batch; its reason lands in Failures.
type Result struct {
	Budgets   SourceResult          `json:"budgets"`
	Contracts SourceResult          `json:"contracts"`
	Purchases SourceResult          `json:"purchases"`
	DailyLogs SourceResult          `json:"daily_logs"`
	Failures  []shared.BatchFailure `json:"failures,omitempty"`
}

// Created sums created entries across all sources.
func (r Result) Created() int {
	return r.Budgets.Created + r.Contracts.Created + r.Purchases.Created + r.DailyLogs.Created
}

// Skipped sums deduplicated entries across all sources.
func (r Result) Skipped() int {
	return r.Budgets.Skipped + r.Contracts.Skipped + r.Purchases.Skipped + r.DailyLogs.Skipped
}

// ServiceConfig carries the injected tax percentages attached to realized
// revenue entries. Taxes are informational rates; Withholdings are the rates
// retained at source, recorded on each revenue entry as amounts.
type ServiceConfig struct {
	Taxes        map[string]float64
	Withholdings map[string]float64
}

// Service is the event ingestion mapper. It reads upstream snapshots and
// writes candidate entries through the ledger store's conditional insert, so
// two concurrent runs never create two entries for the same source event.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService constructs the mapper.
func NewService(store ledger.Store, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{store: store, logger: logger, cfg: cfg}
}

type candidate struct {
	source string
	item   string
	entry  ledger.Entry
}

// Run ingests the snapshot. Only a total inability to use the store
// propagates as an error; per-item failures are reported in the result.
func (s *Service) Run(ctx context.Context, snapshot Snapshot) (Result, error) {
	var (
		mu     sync.Mutex
		batch  shared.BatchResult
		result Result
	)
	bucket := func(source string) *SourceResult {
		switch source {
		case "budgets":
			return &result.Budgets
		case "contracts":
			return &result.Contracts
		case "purchases":
			return &result.Purchases
		default:
			return &result.DailyLogs
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchLimit)
	for _, cand := range s.candidates(snapshot) {
		cand := cand
		g.Go(func() error {
			created, err := s.store.InsertEntry(gctx, cand.entry)
			mu.Lock()
			defer mu.Unlock()
			res := bucket(cand.source)
			switch {
			case err != nil:
				res.Failed++
				batch.Fail(cand.item, err)
				s.logger.Warn("ingest candidate failed",
					slog.String("source", cand.source),
					slog.String("item", cand.item),
					slog.Any("error", err))
			case created:
				res.Created++
				batch.Succeed(cand.item)
			default:
				res.Skipped++
				batch.Succeed(cand.item)
			}
			// Item errors are absorbed into the result so siblings keep going.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	result.Failures = batch.Failed
	return result, nil
}

// candidates builds the deduplicated candidate set for realized/committed
// upstream records. Records whose status is not final produce nothing.
func (s *Service) candidates(snapshot Snapshot) []candidate {
	var out []candidate
	for _, b := range snapshot.Budgets {
		if b.Status != BudgetStatusApproved {
			continue
		}
		entry := ledger.NewProvisionedRevenue(
			ledger.DedupKey(ledger.SourceBudget, b.ID, ledger.SubKindProvisionedRevenue),
			CategoryBudget,
			fmt.Sprintf("Orçamento %s - %s", b.Number, b.Client),
			b.TotalValue,
			orNow(b.ApprovalDate),
		)
		out = append(out, candidate{source: "budgets", item: "budget:" + b.ID, entry: entry})
	}
	for _, c := range snapshot.Contracts {
		if c.Status != ContractStatusSigned {
			continue
		}
		entry := ledger.NewRevenue(
			ledger.DedupKey(ledger.SourceContract, c.ID, ledger.SubKindRevenue),
			CategoryContract,
			fmt.Sprintf("Contrato %s - %s", c.Number, c.Client),
			c.TotalValue,
			orNow(c.SignatureDate),
			ledger.StatusReceived,
		)
		entry.Taxes = s.taxBreakdown()
		entry.Withholdings = s.withholdingBreakdown(entry.Amount)
		out = append(out, candidate{source: "contracts", item: "contract:" + c.ID, entry: entry})
	}
	for _, p := range snapshot.Purchases {
		if p.Status != PurchaseStatusCompleted {
			continue
		}
		entry := ledger.NewExpense(
			ledger.DedupKey(ledger.SourcePurchase, p.ID, ledger.SubKindExpense),
			CategoryMaterials,
			fmt.Sprintf("Compra %s - %s", p.MaterialName, p.Supplier.Name),
			p.TotalValue,
			orNow(p.CompletionDate),
			ledger.StatusPending,
			false,
		)
		due := entry.TransactionDate.AddDate(0, 0, p.Supplier.PaymentTermDays)
		entry.DueDate = &due
		entry.PurchaseID = p.ID
		out = append(out, candidate{source: "purchases", item: "purchase:" + p.ID, entry: entry})
	}
	for _, d := range snapshot.DailyLogs {
		if d.Measurement.Value > 0 {
			entry := ledger.NewRevenue(
				ledger.DedupKey(ledger.SourceDailyLog, d.ID, ledger.SubKindMeasurement),
				CategoryMeasurement,
				fmt.Sprintf("Medição %.1f%% - diário %s", d.Measurement.CompletionPercent, d.ID),
				d.Measurement.Value,
				orNow(d.Date),
				ledger.StatusReceived,
			)
			entry.ProjectID = d.ProjectID
			entry.DailyLogID = d.ID
			entry.Taxes = s.taxBreakdown()
			entry.Withholdings = s.withholdingBreakdown(entry.Amount)
			out = append(out, candidate{source: "dailylogs", item: "dailylog:" + d.ID + ":measurement", entry: entry})
		}
		if len(d.Labor) > 0 {
			entry := ledger.NewExpense(
				ledger.DedupKey(ledger.SourceDailyLog, d.ID, ledger.SubKindLabor),
				CategoryLabor,
				fmt.Sprintf("Mão de obra - diário %s", d.ID),
				d.LaborTotal(),
				orNow(d.Date),
				ledger.StatusPaid,
				false,
			)
			entry.ProjectID = d.ProjectID
			entry.DailyLogID = d.ID
			out = append(out, candidate{source: "dailylogs", item: "dailylog:" + d.ID + ":labor", entry: entry})
		}
	}
	return out
}

func (s *Service) taxBreakdown() map[string]float64 {
	if len(s.cfg.Taxes) == 0 {
		return nil
	}
	taxes := make(map[string]float64, len(s.cfg.Taxes))
	for name, pct := range s.cfg.Taxes {
		taxes[name] = pct
	}
	return taxes
}

// withholdingBreakdown converts the configured withholding rates into the
// amounts retained from one revenue entry, rounded to cents.
func (s *Service) withholdingBreakdown(amount float64) map[string]float64 {
	if len(s.cfg.Withholdings) == 0 {
		return nil
	}
	withheld := make(map[string]float64, len(s.cfg.Withholdings))
	for name, pct := range s.cfg.Withholdings {
		withheld[name] = math.Round(amount*pct) / 100
	}
	return withheld
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
