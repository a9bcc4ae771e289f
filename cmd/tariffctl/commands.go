package main

import (
	"fmt"
	"io"
	"math"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/langchou/meterbook/internal/budget"
	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/tariff"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tariffctl",
		Short:         "Offline electricity tariff and budget calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newComputeCmd(), newDefaultCmd(), newBudgetCmd())
	return root
}

func newComputeCmd() *cobra.Command {
	var (
		file   string
		usage  float64
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the bill for a usage amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if math.IsNaN(usage) || math.IsInf(usage, 0) {
				return fmt.Errorf("--usage must be a finite number")
			}
			if usage < 0 {
				return fmt.Errorf("--usage must not be negative")
			}

			schedule := tariff.DefaultSchedule()
			if file != "" {
				s, err := tariff.LoadFile(file)
				if err != nil {
					return err
				}
				schedule = s
			}

			var (
				res tariff.Result
				err error
			)
			if strict {
				res, err = tariff.ComputeStrict(usage, schedule)
				if err != nil {
					return err
				}
			} else {
				res = tariff.Compute(usage, schedule)
			}
			return printResult(cmd.OutOrStdout(), schedule, usage, res)
		},
	}

	cmd.Flags().StringVarP(&file, "tariff", "f", "", "Tariff schedule file (TOML, YAML or JSON); default schedule when empty")
	cmd.Flags().Float64VarP(&usage, "usage", "u", 0, "Usage in kWh")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when usage exceeds the total block capacity")
	_ = cmd.MarkFlagRequired("usage")
	return cmd
}

func newDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the default tariff schedule as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(tariff.DefaultSchedule())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newBudgetCmd() *cobra.Command {
	var monthlyBudget, target, usage, cost float64

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Evaluate a month against a budget plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if monthlyBudget <= 0 || target <= 0 {
				return fmt.Errorf("--budget and --target must be greater than 0")
			}
			plan := models.BudgetPlan{MonthlyBudget: monthlyBudget, TargetUsageKwh: target}
			e := budget.Evaluate(usage, cost, plan)
			return printEvaluation(cmd.OutOrStdout(), e, budget.TriggeredAlerts(e, budget.DefaultAlerts(0)))
		},
	}

	cmd.Flags().Float64Var(&monthlyBudget, "budget", 0, "Monthly budget")
	cmd.Flags().Float64Var(&target, "target", 0, "Target usage in kWh")
	cmd.Flags().Float64Var(&usage, "usage", 0, "Actual usage in kWh")
	cmd.Flags().Float64Var(&cost, "cost", 0, "Actual cost")
	return cmd
}

func printResult(w io.Writer, s models.TariffSchedule, usage float64, res tariff.Result) error {
	fmt.Fprint(w, pterm.DefaultSection.Sprint(s.TariffName))

	data := pterm.TableData{{"Block", "kWh", "Rate", "Subtotal"}}
	for _, item := range res.Breakdown {
		data = append(data, []string{
			fmt.Sprintf("%d", item.Block),
			fmt.Sprintf("%.2f", item.Kwh),
			fmt.Sprintf("%.2f", item.Rate),
			fmt.Sprintf("%.2f", item.Subtotal),
		})
	}
	if err := renderTable(w, pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data)); err != nil {
		return err
	}

	summary := pterm.TableData{
		{"Usage (kWh)", fmt.Sprintf("%.2f", usage)},
		{"Admin fee", fmt.Sprintf("%.2f", s.AdminFee)},
		{fmt.Sprintf("VAT (%.0f%%)", s.VatPercentage), fmt.Sprintf("%.2f", res.VatAmount)},
		{"Total", fmt.Sprintf("%.2f", res.TotalCost)},
	}
	if res.Unpriced > 0 {
		summary = append(summary, []string{"Unpriced (kWh)", pterm.FgYellow.Sprintf("%.2f", res.Unpriced)})
	}
	return renderTable(w, pterm.DefaultTable.WithData(summary))
}

func printEvaluation(w io.Writer, e budget.Evaluation, triggered []*models.BudgetAlert) error {
	status := string(e.Status)
	switch e.Status {
	case models.BudgetOverBudget:
		status = pterm.FgRed.Sprint(status)
	case models.BudgetOnTrack:
		status = pterm.FgYellow.Sprint(status)
	default:
		status = pterm.FgGreen.Sprint(status)
	}

	data := pterm.TableData{
		{"Status", status},
		{"Usage", fmt.Sprintf("%.2f kWh (%.1f%%)", e.ActualUsageKwh, e.UsagePercentage)},
		{"Cost", fmt.Sprintf("%.2f (%.1f%%)", e.ActualCost, e.CostPercentage)},
		{"Remaining", fmt.Sprintf("%.2f", e.BudgetRemaining)},
	}
	for _, a := range triggered {
		msg := string(a.AlertType)
		if a.Message != nil {
			msg = *a.Message
		}
		data = append(data, []string{"Alert", msg})
	}
	return renderTable(w, pterm.DefaultTable.WithData(data))
}

func renderTable(w io.Writer, t *pterm.TablePrinter) error {
	out, err := t.Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
