package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carrecon/carrecon/internal/model"
)

// Receipt patterns. Receipts are free-form: one candidate transaction per
// page, located by proximity to labels rather than table structure.
var (
	receiptEmployeeRe = regexp.MustCompile(`(?i)(?:Employee|EE|ID)[\s:]*([A-Z\s,]+?)[\s,]+(\d{4,6})`)
	receiptDateRe     = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)

	// Label-then-amount first, then amount-then-label.
	receiptTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Total|Amount)[\s:]*\$?\s*([0-9,]+\.\d{2})`),
		regexp.MustCompile(`(?i)\$\s*([0-9,]+\.\d{2})\s*Total`),
	}
)

// receiptDateFormats is the fixed trial order for date tokens: month/day
// with 4- then 2-digit year, then the day/month variants. Non-padded verbs
// so "3/5/25" and "03/05/2025" both parse.
var receiptDateFormats = []string{
	"1/2/2006",
	"1/2/06",
	"2/1/2006",
	"2/1/06",
}

// receiptHeaderWords are skipped when hunting for the merchant line.
var receiptHeaderWords = []string{"RECEIPT", "INVOICE", "DATE", "EMPLOYEE", "TOTAL"}

const (
	receiptMerchantScanLines = 5
	receiptRawTextLimit      = 500
)

func (e *Extractor) extractReceipts(src PageTextSource) ([]model.ExtractedRecord, error) {
	var records []model.ExtractedRecord

	for pageNum := 1; pageNum <= src.PageCount(); pageNum++ {
		text, err := src.PageText(pageNum)
		if err != nil || text == "" {
			continue
		}

		if rec := parseReceiptPage(text, pageNum); rec != nil {
			records = append(records, *rec)
		}
	}

	return records, nil
}

// parseReceiptPage parses a single receipt page into at most one record.
func parseReceiptPage(text string, pageNum int) *model.ExtractedRecord {
	var employeeID, employeeName *string
	if m := receiptEmployeeRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		id := strings.TrimSpace(m[2])
		if name != "" {
			employeeName = &name
		}
		employeeID = &id
	}

	var date *time.Time
	if token := receiptDateRe.FindString(text); token != "" {
		for _, format := range receiptDateFormats {
			if parsed, err := time.Parse(format, token); err == nil {
				date = &parsed
				break
			}
		}
	}

	var amount *float64
	for _, re := range receiptTotalRes {
		if m := re.FindStringSubmatch(text); m != nil {
			raw := strings.ReplaceAll(m[1], ",", "")
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				amount = &parsed
				break
			}
		}
	}

	merchant := findReceiptMerchant(text)

	// A receipt page without a date or amount has nothing to reconcile.
	if date == nil && amount == nil {
		return nil
	}

	confidence := 0.0
	if date != nil {
		confidence += 0.25
	}
	if amount != nil {
		confidence += 0.35
	}
	if employeeID != nil {
		confidence += 0.25
	}
	if merchant != nil {
		confidence += 0.15
	}

	raw := text
	if len(raw) > receiptRawTextLimit {
		raw = raw[:receiptRawTextLimit]
	}

	return &model.ExtractedRecord{
		Family:       model.FamilyReceipt,
		Date:         date,
		Amount:       amount,
		EmployeeID:   employeeID,
		EmployeeName: employeeName,
		Merchant:     merchant,
		PageNumber:   pageNum,
		RawText:      raw,
		Confidence:   confidence,
	}
}

// findReceiptMerchant picks the merchant from the top of the page: the first
// line among the first five that is long enough, not purely numeric, and not
// a header line.
func findReceiptMerchant(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > receiptMerchantScanLines {
		lines = lines[:receiptMerchantScanLines]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || isAllDigits(line) {
			continue
		}
		if containsAnyWord(strings.ToUpper(line), receiptHeaderWords) {
			continue
		}
		if len(line) > maxMerchantLen {
			line = line[:maxMerchantLen]
		}
		return &line
	}

	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
