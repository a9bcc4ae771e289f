package service

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/langchou/meterbook/internal/models"
)

var (
	pdfHeaderColor  = [3]int{23, 37, 84}
	pdfSectionColor = [3]int{30, 64, 175}
	pdfLineColor    = [3]int{200, 200, 200}
	pdfBodyColor    = [3]int{33, 33, 33}
)

func formatRupiah(v float64) string {
	return fmt.Sprintf("Rp %.0f", v)
}

// RenderReportPDF 将报告渲染为 PDF
func RenderReportPDF(w io.Writer, r *models.Report, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Laporan Penggunaan Listrik", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, tr("Generated "+generatedAt.Format("2006-01-02 15:04")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(pdfSectionColor[0], pdfSectionColor[1], pdfSectionColor[2])
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(7)
		pdf.SetDrawColor(pdfLineColor[0], pdfLineColor[1], pdfLineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(pdfBodyColor[0], pdfBodyColor[1], pdfBodyColor[2])
	}

	row := func(label, value string) {
		pdf.CellFormat(70, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}

	pdf.AddPage()
	pdf.SetFillColor(pdfHeaderColor[0], pdfHeaderColor[1], pdfHeaderColor[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	heading := fmt.Sprintf("  Laporan Penggunaan Listrik (%s %04d-%02d)", r.Period, r.Year, r.Month)
	pdf.CellFormat(0, 12, tr(heading), "", 1, "L", true, 0, "")
	pdf.Ln(8)

	section("Statistik")
	st := r.Statistics
	row("Jumlah pencatatan", fmt.Sprintf("%d", st.TotalReadings))
	row("Total pemakaian", fmt.Sprintf("%.2f kWh", st.TotalUsageAllTime))
	row("Total biaya", formatRupiah(st.TotalCostAllTime))
	row("Rata-rata pemakaian", fmt.Sprintf("%.2f kWh", st.AvgUsageAllTime))
	row("Pemakaian min / maks", fmt.Sprintf("%.2f / %.2f kWh", st.MinUsageAllTime, st.MaxUsageAllTime))
	if st.FirstReadingDate != nil && st.LastReadingDate != nil {
		row("Periode data", st.FirstReadingDate.Format("2006-01-02")+" s/d "+st.LastReadingDate.Format("2006-01-02"))
	}
	pdf.Ln(6)

	section("Tren (bulan ini vs bulan lalu)")
	trend := func(label string, t models.Trend, format func(float64) string) {
		row(label, fmt.Sprintf("%s -> %s (%+.1f%%, %s)", format(t.Previous), format(t.Current), t.Change, t.ChangeType))
	}
	trend("Pemakaian", r.Trends.Usage, func(v float64) string { return fmt.Sprintf("%.2f kWh", v) })
	trend("Biaya", r.Trends.Cost, formatRupiah)
	pdf.Ln(6)

	section("Rincian per periode")
	widths := []float64{40, 30, 40, 20, 30, 30}
	headers := []string{"Periode", "kWh", "Biaya", "Catatan", "Rata-rata", "Maks"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, tr(h), "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	if len(r.UsageData) == 0 {
		pdf.CellFormat(0, 7, tr("Tidak ada data"), "", 1, "L", false, 0, "")
	}
	for _, p := range r.UsageData {
		cells := []string{
			p.Period,
			fmt.Sprintf("%.2f", p.TotalUsage),
			formatRupiah(p.TotalCost),
			fmt.Sprintf("%d", p.ReadingCount),
			fmt.Sprintf("%.2f", p.AvgUsage),
			fmt.Sprintf("%.2f", p.MaxUsage),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, tr(c), "", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report pdf: %w", err)
	}
	return nil
}
