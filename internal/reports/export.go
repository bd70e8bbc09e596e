package reports

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteByProductCSV serialises the by-product report.
func WriteByProductCSV(w io.Writer, lines []ProductLine) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Product", "Purchased Qty", "Sold Qty", "Total Cost", "Total Income"}); err != nil {
		return err
	}
	for _, line := range lines {
		if err := writer.Write([]string{
			line.Name,
			strconv.Itoa(line.PurchasedQty),
			strconv.Itoa(line.SoldQty),
			line.TotalCost.StringFixed(2),
			line.TotalIncome.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
