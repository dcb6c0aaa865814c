package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carrecon/carrecon/internal/model"
)

// CAR statement patterns. The cardholder block appears in the page header on
// separate lines; transaction lines sit between the column header row and
// the "Transaction Totals:" row.
var (
	carEmployeeIDRe = regexp.MustCompile(`Employee\s+ID:\s*(\d{4,6})`)
	carCardNumberRe = regexp.MustCompile(`Card\s+Number:\s*(\d{6}X+\d{4})`)
	carCardholderRe = regexp.MustCompile(`Cardholder\s+Name:\s*([A-Z]+)`)

	carTableHeaderRe = regexp.MustCompile(`Trans Date\s+Posted Date.*Merchant Name`)

	carDateRe   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	carAmountRe = regexp.MustCompile(`\$([0-9,]+\.\d{2})`)

	// Inside the third date-split segment: level char, transaction number,
	// then the merchant, terminated by a state code or the amount column.
	carMerchantRe = regexp.MustCompile(`[A-Z]\s+\d+\s+(.+?)(?:\s+[A-Z]{2}\s+|\s+\$)`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

const maxMerchantLen = 255

// carContext is the cardholder state carried forward across statement pages
// until a new header block appears.
type carContext struct {
	employeeID   string
	employeeName string
	cardNumber   string
	valid        bool
}

func (e *Extractor) extractCAR(src PageTextSource) ([]model.ExtractedRecord, error) {
	var records []model.ExtractedRecord
	var cctx carContext

	for pageNum := 1; pageNum <= src.PageCount(); pageNum++ {
		text, err := src.PageText(pageNum)
		if err != nil || text == "" {
			// Unreadable or empty page: skip and continue.
			continue
		}

		var pageRecords []model.ExtractedRecord
		pageRecords, cctx = parseCARPage(text, pageNum, cctx)
		records = append(records, pageRecords...)
	}

	return records, nil
}

// parseCARPage parses one statement page. The cardholder context flows in and
// out explicitly so the parser stays referentially transparent and testable
// page by page.
func parseCARPage(text string, pageNum int, cctx carContext) ([]model.ExtractedRecord, carContext) {
	// A new header block replaces the carried-forward cardholder context.
	idMatch := carEmployeeIDRe.FindStringSubmatch(text)
	cardMatch := carCardNumberRe.FindStringSubmatch(text)
	if idMatch != nil && cardMatch != nil {
		cctx = carContext{
			employeeID: strings.TrimSpace(idMatch[1]),
			cardNumber: strings.TrimSpace(cardMatch[1]),
			valid:      true,
		}
		if nameMatch := carCardholderRe.FindStringSubmatch(text); nameMatch != nil {
			cctx.employeeName = strings.TrimSpace(nameMatch[1])
		}
	}

	if !carTableHeaderRe.MatchString(text) {
		return nil, cctx
	}

	var records []model.ExtractedRecord
	inTransactionSection := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if strings.Contains(line, "Trans Date") && strings.Contains(line, "Posted Date") {
			inTransactionSection = true
			continue
		}
		if strings.Contains(line, "Transaction Totals:") {
			inTransactionSection = false
			continue
		}
		if !inTransactionSection || len(line) < 10 {
			continue
		}

		if rec := parseCARLine(line, pageNum, cctx); rec != nil {
			records = append(records, *rec)
		}
	}

	return records, cctx
}

// parseCARLine parses a single statement transaction line of the form:
//
//	Trans Date  Posted Date  Lvl  Transaction#  Merchant  City, ST  ...  $Amount
//	03/03/2025  03/04/2025   N    000425061     OVERHEAD DOOR COM KEMAH, TX ... $768.22
func parseCARLine(line string, pageNum int, cctx carContext) *model.ExtractedRecord {
	dates := carDateRe.FindAllString(line, -1)
	if len(dates) == 0 {
		return nil
	}

	// First date is the transaction date; the second is the posted date.
	var date *time.Time
	if parsed, err := time.Parse("01/02/2006", dates[0]); err == nil {
		date = &parsed
	}

	// Statement lines list several amounts; the last one is the net cost.
	var amount *float64
	amountMatches := carAmountRe.FindAllStringSubmatch(line, -1)
	if len(amountMatches) > 0 {
		raw := strings.ReplaceAll(amountMatches[len(amountMatches)-1][1], ",", "")
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			amount = &parsed
		}
	}

	var merchant *string
	parts := carDateRe.Split(line, -1)
	if len(parts) >= 3 {
		// Third segment holds: level, transaction number, merchant, location.
		section := strings.TrimSpace(parts[2])
		if m := carMerchantRe.FindStringSubmatch(section); m != nil {
			name := whitespaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
			if len(name) > maxMerchantLen {
				name = name[:maxMerchantLen]
			}
			if name != "" {
				merchant = &name
			}
		}
	}

	if date == nil && amount == nil {
		return nil
	}

	confidence := 0.0
	if date != nil {
		confidence += 0.3
	}
	if amount != nil {
		confidence += 0.3
	}
	if merchant != nil {
		confidence += 0.2
	}
	if cctx.valid {
		confidence += 0.2
	}

	rec := &model.ExtractedRecord{
		Family:     model.FamilyCAR,
		Date:       date,
		Amount:     amount,
		Merchant:   merchant,
		PageNumber: pageNum,
		RawText:    line,
		Confidence: confidence,
	}
	if cctx.valid {
		rec.EmployeeID = &cctx.employeeID
		rec.CardNumber = &cctx.cardNumber
		if cctx.employeeName != "" {
			rec.EmployeeName = &cctx.employeeName
		}
	}

	return rec
}
