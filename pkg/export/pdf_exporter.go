package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RegistrationSummary describes the content of a registration summary PDF.
type RegistrationSummary struct {
	Institute    string
	StudentName  string
	StudentEmail string
	Semester     string
	AcademicYear string
	Status       string
	GeneratedAt  time.Time
	Courses      []CourseLine
}

// CourseLine is a single course row within a registration summary.
type CourseLine struct {
	Code     string
	Title    string
	Credits  int
	Status   string
	Decision string
}

// PDFExporter renders registration summaries into PDF documents.
type PDFExporter struct {
	institute string
}

// NewPDFExporter constructs a PDF exporter branded with the institute name.
func NewPDFExporter(institute string) *PDFExporter {
	if institute == "" {
		institute = "University Registrar Office"
	}
	return &PDFExporter{institute: institute}
}

// RenderRegistration creates a registration summary document.
func (e *PDFExporter) RenderRegistration(summary RegistrationSummary) ([]byte, error) {
	if summary.StudentName == "" {
		return nil, fmt.Errorf("pdf requires a student name")
	}
	if summary.Institute == "" {
		summary.Institute = e.institute
	}
	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, summary.Institute, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Course Registration Summary", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	info := [][2]string{
		{"Student", summary.StudentName},
		{"Email", summary.StudentEmail},
		{"Semester", fmt.Sprintf("%s %s", summary.Semester, summary.AcademicYear)},
		{"Registration status", summary.Status},
		{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04 MST")},
	}
	for _, pair := range info {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, pair[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, pair[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	headers := []string{"Code", "Course", "Credits", "Status", "Decision"}
	widths := []float64{25, 80, 20, 30, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, line := range summary.Courses {
		pdf.CellFormat(widths[0], 7, line.Code, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 7, line.Title, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d", line.Credits), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 7, line.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 7, line.Decision, "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}
	if len(summary.Courses) == 0 {
		pdf.CellFormat(190, 7, "No courses attached", "1", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
