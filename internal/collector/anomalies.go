package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// ScanAnomalies looks for suspicious payment patterns per marketplace:
// individual fee rates far above the venue's recent average, and a
// backlog of transactions that never reconciled. Findings go to the
// ledger and raise WARN alerts; acting on them is the Governor's job.
func (c *Collector) ScanAnomalies(ctx context.Context, params Params) ([]Anomaly, error) {
	days := params.TrailingDays
	if days <= 0 {
		days = 7
	}
	since := c.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	marketplaces := params.Marketplaces
	if len(marketplaces) == 0 {
		marketplaces = domain.AllMarketplaces
	}

	var anomalies []Anomaly
	for _, m := range marketplaces {
		if err := ctx.Err(); err != nil {
			return anomalies, err
		}

		txs, err := c.transactionStore.GetByMarketplaceSince(ctx, m, since)
		if err != nil {
			return nil, fmt.Errorf("%s: load transactions: %w", m, err)
		}

		var rateSum float64
		var eligible, unreconciled int
		type rated struct {
			id   string
			rate float64
		}
		var rates []rated

		for _, tx := range txs {
			settled := false
			for _, s := range reconcilableStatuses {
				if tx.Status == s {
					settled = true
					break
				}
			}
			if !settled {
				continue
			}
			eligible++
			if tx.ReconciledAt == 0 {
				unreconciled++
			}
			if tx.SalePrice > 0 {
				r := tx.Fees / tx.SalePrice
				rateSum += r
				rates = append(rates, rated{tx.TransactionID, r})
			}
		}
		if eligible == 0 {
			continue
		}

		if len(rates) >= 2 {
			avg := rateSum / float64(len(rates))
			for _, r := range rates {
				if avg > 0 && r.rate > avg*anomalyFeeFactor {
					anomalies = append(anomalies, Anomaly{
						Kind:        "fee_spike",
						Marketplace: m,
						Detail: fmt.Sprintf("transaction %s fee rate %.1f%% is over %gx the recent average %.1f%%",
							r.id, r.rate*100, anomalyFeeFactor, avg*100),
					})
				}
			}
		}

		if share := float64(unreconciled) / float64(eligible); share > anomalyUnreconciledPct {
			anomalies = append(anomalies, Anomaly{
				Kind:        "unreconciled_backlog",
				Marketplace: m,
				Detail: fmt.Sprintf("%.0f%% of %d settled transactions lack reconciliation",
					share*100, eligible),
			})
		}
	}

	for _, a := range anomalies {
		c.ledger.Write(ctx, "collector", "collector.anomaly_detected", map[string]any{
			"kind":        a.Kind,
			"marketplace": a.Marketplace,
			"detail":      a.Detail,
		})
		if c.alertStore != nil && !params.DryRun {
			err := c.alertStore.Insert(ctx, &domain.Alert{
				AlertID:   uuid.NewString(),
				Severity:  domain.SeverityWarn,
				Module:    "collector",
				Message:   fmt.Sprintf("%s on %s: %s", a.Kind, a.Marketplace, a.Detail),
				CreatedAt: c.now().UnixMilli(),
			})
			if err != nil {
				c.logger.Printf("[collector] raise anomaly alert: %v", err)
			}
		}
	}
	return anomalies, nil
}
