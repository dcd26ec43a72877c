// Package extract pulls typed fields out of routed raw text.
//
// Every function here is pure and total: a failed extraction yields a zero
// value and ok == false, never an error. The same functions run during live
// ingestion and during day replay, so their output for a given input must
// not change between releases without a data migration.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/mnemo/internal/model"
)

var (
	amountRe   = regexp.MustCompile(`[\$€]?\s*(\d[\d,\.]*)`)
	incomeRe   = regexp.MustCompile(`(?i)(ingreso|income|cobr|recibi|recib[íi])`)
	transferRe = regexp.MustCompile(`(?i)(transfer|envié|envi[eé])`)
	taskRe     = regexp.MustCompile(`(?i)^(TODO|TASK|tarea|hacer)\s*[:\-]?\s*`)
	projectRe  = regexp.MustCompile(`(?i)^(PROJECT|PROYECTO)\s*[:\-]?\s*`)
	metricRe   = regexp.MustCompile(`(?i)(?:METRIC[A-Z]*|KPI)\s*:\s*([\p{L}\p{N}_][\p{L}\p{N}_\s]*?)\s*=\s*([\d\.]+)\s*([\p{L}\p{N}_]+)?`)
)

// UnknownMetric is the metric name used when the text cannot be parsed.
const UnknownMetric = "unknown"

// Amount returns the first number in text as integer cents.
//
// An optional leading currency symbol is allowed, thousands separators
// (commas) are dropped and fractional digits beyond two are rounded half-up.
func Amount(text string) (cents int64, ok bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	num := strings.ReplaceAll(m[1], ",", "")
	// Sentence punctuation directly after the number is not part of it.
	num = strings.TrimRight(num, ".")
	return parseCents(num)
}

func parseCents(num string) (int64, bool) {
	whole, frac, hasFrac := strings.Cut(num, ".")
	if whole == "" || strings.Contains(frac, ".") {
		return 0, false
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, false
	}

	var hundredths int64
	if hasFrac && frac != "" {
		padded := frac + "00"
		h, err := strconv.ParseInt(padded[:2], 10, 64)
		if err != nil {
			return 0, false
		}
		hundredths = h
		if len(frac) > 2 && frac[2] >= '5' {
			hundredths++
		}
	}
	return units*100 + hundredths, true
}

// maxUnits keeps units*100 within int64.
const maxUnits = (1<<63-1)/100 - 1

// TransactionKind classifies money movement by keyword.
func TransactionKind(text string) model.TransactionKind {
	switch {
	case incomeRe.MatchString(text):
		return model.TxIncome
	case transferRe.MatchString(text):
		return model.TxTransfer
	default:
		return model.TxExpense
	}
}

// TaskTitle strips the task prefix. Text that is only a prefix keeps the raw text.
func TaskTitle(text string) string {
	return stripPrefix(taskRe, text)
}

// ProjectName strips the project prefix. Text that is only a prefix keeps the raw text.
func ProjectName(text string) string {
	return stripPrefix(projectRe, text)
}

func stripPrefix(re *regexp.Regexp, text string) string {
	trimmed := strings.TrimSpace(re.ReplaceAllString(text, ""))
	if trimmed == "" {
		return text
	}
	return trimmed
}

// MetricReading is a parsed "METRIC: name=value unit" line.
type MetricReading struct {
	Name  string
	Value float64
	Unit  string
}

// Metric parses "METRIC: name=value unit" (also METRICA and KPI prefixes).
// On failure the reading is (unknown, 0, "") and ok is false.
func Metric(text string) (MetricReading, bool) {
	unknown := MetricReading{Name: UnknownMetric}
	m := metricRe.FindStringSubmatch(text)
	if m == nil {
		return unknown, false
	}
	value, err := strconv.ParseFloat(strings.TrimRight(m[2], "."), 64)
	if err != nil {
		return unknown, false
	}
	return MetricReading{
		Name:  strings.TrimSpace(m[1]),
		Value: value,
		Unit:  m[3],
	}, true
}
