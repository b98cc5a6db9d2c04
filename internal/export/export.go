// Package export writes dashboard records to an XLSX workbook.
package export

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"campus/portal/internal/model"
)

const (
	AttendanceSheet = "Attendance"
	MarksSheet      = "Marks"
)

var (
	attendanceHeader = []interface{}{"Student ID", "Student", "Subject", "Date", "Status", "Marked By"}
	marksHeader      = []interface{}{"Student ID", "Student", "Subject", "Exam", "Marks", "Max Marks", "Percentage", "Marked By"}
)

// Source is anything holding attendance and marks, typically a mounted
// dashboard.
type Source interface {
	Records() ([]model.AttendanceRecord, []model.MarksRecord)
}

// Write renders one attendance sheet and one marks sheet into w.
func Write(w io.Writer, attendance []model.AttendanceRecord, marks []model.MarksRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), AttendanceSheet); err != nil {
		return errors.Wrap(err, "naming attendance sheet")
	}
	if _, err := f.NewSheet(MarksSheet); err != nil {
		return errors.Wrap(err, "adding marks sheet")
	}

	rows := make([][]interface{}, 0, len(attendance)+1)
	rows = append(rows, attendanceHeader)
	for _, a := range attendance {
		rows = append(rows, []interface{}{a.StudentID, a.StudentName, a.Subject, a.Date, string(a.Status), a.MarkedByName})
	}
	if err := writeRows(f, AttendanceSheet, rows); err != nil {
		return err
	}

	rows = make([][]interface{}, 0, len(marks)+1)
	rows = append(rows, marksHeader)
	for _, m := range marks {
		rows = append(rows, []interface{}{m.StudentID, m.StudentName, m.Subject, m.ExamType, m.Marks, m.MaxMarks, round2(m.Percentage()), m.MarkedByName})
	}
	if err := writeRows(f, MarksSheet, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

// WriteFile exports src to path.
func WriteFile(path string, src Source) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	attendance, marks := src.Records()
	if err := Write(out, attendance, marks); err != nil {
		out.Close()
		return err
	}
	return errors.Wrap(out.Close(), "closing export file")
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing %s row %d", sheet, i+1)
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
