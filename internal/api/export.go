package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"donateblood/m/domain"
)

const recipientSheet = "Recipients"

var recipientHeaders = []string{
	"Request ID", "Name", "Email", "Phone", "Gender", "Date of Birth", "Address",
	"Blood Type", "Quantity", "Urgency", "Status", "Required Date", "Hospital",
	"Transferred To", "Cancel Reason",
}

func (h *Handler) exportRecipients(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.scopedHospital(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	rows, err := h.svc.Requests.ListForHospital(r.Context(), hospital)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	data, err := recipientWorkbook(rows)
	if err != nil {
		h.log.Error("recipient export failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to build export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=recipients-%s.xlsx", time.Now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func recipientWorkbook(rows []domain.RequestRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recipientSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE2E2"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(recipientHeaders))
	for i, v := range recipientHeaders {
		header[i] = v
	}
	if err := f.SetSheetRow(recipientSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(recipientHeaders), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(recipientSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			row.RequestID, deref(row.Username), deref(row.Email), deref(row.Phone), deref(row.Gender),
			deref(row.DateOfBirth), deref(row.Address), row.BloodType, row.Quantity, string(row.Urgency),
			string(row.Status), row.RequiredDate, row.HospitalName, deref(row.TargetHospitalName), deref(row.CancelReason),
		}
		if err := f.SetSheetRow(recipientSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row.RequestID, err)
		}
	}

	if err := f.SetPanes(recipientSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
