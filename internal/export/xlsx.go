// Package export writes a finished analysis to a spreadsheet for offline
// review.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/decision-cli/internal/model"
)

// Sheet names, in workbook order.
const (
	SheetOptions  = "Options"
	SheetScores   = "Scores"
	SheetEvidence = "Evidence"
	SheetMappings = "Mappings"
)

// Workbook builds a workbook with one sheet per artifact kind. Option titles
// are resolved into the score and mapping sheets.
func Workbook(result *model.AnalysisResult) (*xlsx.File, error) {
	if result == nil {
		return nil, eris.New("export: no analysis result")
	}
	f := xlsx.NewFile()

	titles := make(map[string]string, len(result.Options))
	for _, o := range result.Options {
		titles[o.ID] = o.Title
	}
	primary := ""
	if result.Recommendation != nil {
		primary = result.Recommendation.PrimaryOptionID
	}

	sheet, err := addSheet(f, SheetOptions, "ID", "Title", "Summary", "Upside", "Risk", "Reversibility", "Evidence", "Recommended")
	if err != nil {
		return nil, err
	}
	for _, o := range result.Options {
		row := sheet.AddRow()
		addStrings(row, o.ID, o.Title, o.Summary, o.PrimaryUpside, o.PrimaryRisk)
		row.AddCell().SetInt(o.Reversibility)
		addStrings(row, strings.Join(o.GroundedInEvidence, ", "), yesNo(o.ID == primary))
	}

	sheet, err = addSheet(f, SheetScores, "Option ID", "Option", "Total",
		"Evidence Strength", "Evidence Recency", "Source Reliability", "Corroboration", "Constraint Fit", "Assumption Risk", "Rationale")
	if err != nil {
		return nil, err
	}
	for _, s := range result.Scores {
		row := sheet.AddRow()
		addStrings(row, s.OptionID, titles[s.OptionID])
		row.AddCell().SetInt(s.TotalScore)
		for _, v := range []float64{
			s.Factors.EvidenceStrength,
			s.Factors.EvidenceRecency,
			s.Factors.SourceReliability,
			s.Factors.Corroboration,
			s.Factors.ConstraintFit,
			s.Factors.AssumptionRisk,
		} {
			row.AddCell().SetFloat(v)
		}
		addStrings(row, s.ScoreRationale)
	}

	sheet, err = addSheet(f, SheetEvidence, "ID", "Claim", "Source", "URL", "Credibility", "Relevance", "Freshness", "Extracted")
	if err != nil {
		return nil, err
	}
	for _, e := range result.Evidence {
		row := sheet.AddRow()
		addStrings(row, e.ID, e.Claim, e.SourceTitle, e.SourceURL)
		row.AddCell().SetFloat(e.CredibilityScore)
		row.AddCell().SetFloat(e.RelevanceScore)
		addStrings(row, string(e.Freshness), e.ExtractedAt.UTC().Format("2006-01-02"))
	}

	sheet, err = addSheet(f, SheetMappings, "Option ID", "Option", "Evidence ID", "Relationship", "Impact", "Explanation")
	if err != nil {
		return nil, err
	}
	for _, m := range result.Mappings {
		row := sheet.AddRow()
		addStrings(row, m.OptionID, titles[m.OptionID], m.EvidenceID, string(m.Relationship), string(m.ImpactLevel), m.RelevanceExplanation)
	}

	return f, nil
}

// WriteFile saves the workbook for result at path.
func WriteFile(path string, result *model.AnalysisResult) error {
	f, err := Workbook(result)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadSheet returns the named sheet of an exported workbook as string rows,
// header included.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open file")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("export: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func addSheet(f *xlsx.File, name string, header ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStrings(sheet.AddRow(), header...)
	return sheet, nil
}

func addStrings(row *xlsx.Row, vals ...string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
