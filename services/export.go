package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tealeg/xlsx"
	"realtors/models"
)

var exportHeaders = []string{
	"ID", "Title", "PropertyType", "ListingType", "Zone", "Location",
	"Price", "Area", "AreaUnit", "Beds", "Baths", "Status", "Approval",
	"Featured", "Popular", "ContactName", "ContactPhone", "ContactEmail",
	"Images", "CreatedAt", "UpdatedAt",
}

// ExportXLSX writes one spreadsheet row per property.
func ExportXLSX(w io.Writer, props []models.Property) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Properties")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, p := range props {
		row := sheet.AddRow()

		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Title)
		row.AddCell().SetValue(string(p.PropertyType))
		row.AddCell().SetValue(string(p.ListingType))
		row.AddCell().SetValue(p.Zone)
		row.AddCell().SetValue(p.Location)
		row.AddCell().SetValue(p.Price.String())
		row.AddCell().SetValue(p.Area.String())
		row.AddCell().SetValue(p.AreaUnit)
		row.AddCell().SetValue(optionalInt(p.Beds))
		row.AddCell().SetValue(optionalInt(p.Baths))
		row.AddCell().SetValue(p.Status)
		row.AddCell().SetValue(approvalOf(p))
		row.AddCell().SetValue(p.Featured)
		row.AddCell().SetValue(p.Popular)
		row.AddCell().SetValue(p.Contact.Name)
		row.AddCell().SetValue(p.Contact.Phone)
		row.AddCell().SetValue(p.Contact.Email)
		row.AddCell().SetValue(strings.Join(p.Images, "\n"))
		row.AddCell().SetValue(formatMillis(p.CreatedAt))
		row.AddCell().SetValue(formatMillis(p.UpdatedAt))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func approvalOf(p models.Property) string {
	if p.Pending() {
		return models.ApprovalPending
	}
	return models.ApprovalApproved
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
