/*

This file persists and queries per-cycle settlement reports. Amounts are
round-tripped through their decimal string form; nothing accounting-related
ever touches a float.

*/

package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/sturdyfi/sturdy-yearn-strategy/internal/types"
)

// SaveCycleReport inserts a cycle report and returns its report ID.
func SaveCycleReport(report types.CycleReport) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO settlement_cycles (
			cycle_number, cycle_id, cycle_timestamp,
			debt_outstanding, profit, loss, debt_payment,
			total_assets, liquid_balance, receipt_balance, deployed_amount,
			duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING report_id;`

	var reportID int64
	err := DB.QueryRow(insertSQL,
		report.CycleNumber,
		report.CycleID,
		report.Timestamp,
		report.DebtOutstanding.String(),
		report.Settlement.Profit.String(),
		report.Settlement.Loss.String(),
		report.Settlement.DebtPayment.String(),
		report.TotalAssets.String(),
		report.LiquidBalance.String(),
		report.ReceiptBalance.String(),
		report.DeployedAmount.String(),
		report.Duration.Milliseconds(),
	).Scan(&reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cycle report: %w", err)
	}

	log.Debug().Int64("reportID", reportID).Int("cycleNumber", report.CycleNumber).Msg("Saved cycle report")
	return reportID, nil
}

// GetRecentCycleReports returns the most recent cycle reports, newest first.
func GetRecentCycleReports(limit int) ([]types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	querySQL := `
		SELECT report_id, cycle_number, cycle_id, cycle_timestamp,
		       debt_outstanding, profit, loss, debt_payment,
		       total_assets, liquid_balance, receipt_balance, deployed_amount,
		       duration_ms
		FROM settlement_cycles
		ORDER BY cycle_timestamp DESC
		LIMIT $1;`

	rows, err := DB.Query(querySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle reports: %w", err)
	}
	defer rows.Close()

	var reports []types.CycleReport
	for rows.Next() {
		report, err := scanCycleReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycle reports: %w", err)
	}
	return reports, nil
}

// GetCycleReportByID returns a single cycle report.
func GetCycleReportByID(reportID int64) (*types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	querySQL := `
		SELECT report_id, cycle_number, cycle_id, cycle_timestamp,
		       debt_outstanding, profit, loss, debt_payment,
		       total_assets, liquid_balance, receipt_balance, deployed_amount,
		       duration_ms
		FROM settlement_cycles
		WHERE report_id = $1;`

	report, err := scanCycleReport(DB.QueryRow(querySQL, reportID))
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCycleReport(row rowScanner) (types.CycleReport, error) {
	var (
		report                                       types.CycleReport
		timestamp                                    time.Time
		debtStr, profitStr, lossStr, paymentStr      string
		totalStr, liquidStr, receiptStr, deployedStr string
		durationMS                                   int64
	)

	err := row.Scan(
		&report.ReportID, &report.CycleNumber, &report.CycleID, &timestamp,
		&debtStr, &profitStr, &lossStr, &paymentStr,
		&totalStr, &liquidStr, &receiptStr, &deployedStr,
		&durationMS,
	)
	if err != nil {
		return types.CycleReport{}, fmt.Errorf("failed to scan cycle report: %w", err)
	}

	amounts := []struct {
		raw  string
		dest *sdkmath.Int
	}{
		{debtStr, &report.DebtOutstanding},
		{profitStr, &report.Settlement.Profit},
		{lossStr, &report.Settlement.Loss},
		{paymentStr, &report.Settlement.DebtPayment},
		{totalStr, &report.TotalAssets},
		{liquidStr, &report.LiquidBalance},
		{receiptStr, &report.ReceiptBalance},
		{deployedStr, &report.DeployedAmount},
	}
	for _, a := range amounts {
		parsed, ok := sdkmath.NewIntFromString(a.raw)
		if !ok {
			return types.CycleReport{}, fmt.Errorf("failed to parse stored amount %q", a.raw)
		}
		*a.dest = parsed
	}

	report.Timestamp = timestamp
	report.Duration = time.Duration(durationMS) * time.Millisecond
	return report, nil
}
