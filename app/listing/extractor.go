package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extractor parses noisy captured text into structured per-event fields.
// Rules are tried independently per field: a missing field never blocks
// the others, and malformed input never produces an error, only a
// FAILED-confidence extraction.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

var (
	dayFirstDateRe  = regexp.MustCompile(`(?i)\b(?:mon|tue|wed|thu|fri|sat|sun)?\s*(\d{1,2})\s*(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s*(\d{4})?\b`)
	monthFirstDateRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b,?\s*(\d{4})?`)
	numericDateRe   = regexp.MustCompile(`^\d{1,4}[./-]\d{1,2}[./-]\d{1,4}$`)
	timeRe          = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2})\s*(am|pm)?\b`)
	venuePrefixRe   = regexp.MustCompile(`(?i)^venue\s*[:\-]\s*(.+)$`)
	statusPrefixRe  = regexp.MustCompile(`(?i)^(?:status|seats?)\s*[:\-]\s*(.+)$`)
	currencyRe      = regexp.MustCompile(`(?i)(₹|rs\.?|inr)`)
	amountRe        = regexp.MustCompile(`(\d{2,6})(?:\.\d{1,2})?`)
	priceSuffixRe   = regexp.MustCompile(`(?i)\b(onwards|only)\b`)
	// OCR frequently reads the rupee glyph as a leading "2".
	ocrRupeeRe  = regexp.MustCompile(`(^|[^0-9])2[\s.,]+([0-9]{2,6})`)
	ageLimitRe  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:yrs?|years?)\s*(\+)?`)
	durationRe  = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:hours?|hrs?|minutes?|mins?)\b`)
	ocrNoiseRe  = regexp.MustCompile(`<\d+`)
	monthByName = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
	venueKeywords = []string{
		"arena", "stadium", "center", "centre", "hall", "theatre",
		"theater", "club", "auditorium", "grounds", "amphitheatre", "fort",
	}
	knownLanguages = []string{
		"Hindi", "English", "Tamil", "Telugu", "Kannada", "Malayalam",
		"Punjabi", "Marathi", "Bengali", "Gujarati",
	}
)

// statusVocabulary maps normalized badge phrases into the closed status
// vocabulary. Keys are lowercased with spaces stripped and common OCR
// digit/letter confusions folded, so "FastFilling", "fast filling" and
// "fast fi11ing" all land on the same entry.
var statusVocabulary = map[string]string{
	"fastfilling":    "Fast Filling",
	"fillingfast":    "Fast Filling",
	"almostfull":     "Fast Filling",
	"limitedseats":   "Fast Filling",
	"fewticketsleft": "Fast Filling",
	"soldout":        "Sold Out",
	"housefull":      "Sold Out",
	"noseats":        "Sold Out",
	"available":      "Available",
	"bookingopen":    "Available",
	"new":            "New",
}

// Run extracts structured fields from one captured text. It always
// returns an extraction, possibly all-empty with confidence FAILED.
func (e *Extractor) Run(rawText string, runDate time.Time) Extraction {
	var ex Extraction

	text := foldCapturedText(rawText)
	segments := splitSegments(text)

	var dates []time.Time
	for _, seg := range segments {
		if len(dates) < 2 {
			dates = append(dates, e.parseDates(seg, runDate, 2-len(dates))...)
		}

		if ex.EventTime == "" {
			ex.EventTime = e.parseTime(seg)
		}
		if ex.Venue == "" {
			ex.Venue = e.parseVenue(seg)
		}
		if ex.Language == "" {
			ex.Language = e.parseLanguage(seg)
		}
		if ex.Duration == "" && durationRe.MatchString(seg) {
			ex.Duration = durationRe.FindString(seg)
		}
		if ex.AgeLimit == "" {
			ex.AgeLimit = e.parseAgeLimit(seg)
		}
		if ex.StatusBadge == "" {
			ex.StatusBadge, ex.BadgeUnrecognized = e.parseStatus(seg)
		}
	}

	ex.EventDate = formatDates(dates)
	ex.PriceRange = e.parsePrice(segments)

	ex.Confidence = confidenceFor(ex)
	return ex
}

// BuildRecord combines a raw card with its extraction into a partial
// record ready for the merger. The card badge is mapped through the
// status vocabulary; unrecognized phrases are preserved verbatim and
// flagged for review rather than discarded.
func BuildRecord(card Card, ex Extraction) Record {
	rec := Record{
		SourceURL:   card.DetailURL,
		Title:       card.Title,
		Venue:       ex.Venue,
		EventDate:   ex.EventDate,
		EventTime:   ex.EventTime,
		Language:    ex.Language,
		PriceRange:  ex.PriceRange,
		StatusBadge: ex.StatusBadge,
		Duration:    ex.Duration,
		AgeLimit:    ex.AgeLimit,
		Confidence:  ex.Confidence,
		Active:      true,
	}

	if ex.BadgeUnrecognized {
		rec.NeedsReview = true
		rec.ReviewReason = fmt.Sprintf("unrecognized status badge: %q", ex.StatusBadge)
	}

	if rec.StatusBadge == "" && card.BadgeText != "" {
		if mapped, ok := MapStatusBadge(card.BadgeText); ok {
			rec.StatusBadge = mapped
		} else {
			rec.StatusBadge = strings.TrimSpace(card.BadgeText)
			rec.NeedsReview = true
			rec.ReviewReason = fmt.Sprintf("unrecognized status badge: %q", rec.StatusBadge)
		}
	}

	return rec
}

// MapStatusBadge resolves a free-text badge phrase into the closed
// status vocabulary, tolerating case, spacing and common OCR misreads.
func MapStatusBadge(raw string) (string, bool) {
	key := normalizeBadgeKey(raw)
	if key == "" {
		return "", false
	}
	if canonical, ok := statusVocabulary[key]; ok {
		return canonical, true
	}
	// Badge text sometimes arrives embedded in longer phrases.
	for vocabKey, canonical := range statusVocabulary {
		if len(vocabKey) >= 6 && strings.Contains(key, vocabKey) {
			return canonical, true
		}
	}
	return "", false
}

func normalizeBadgeKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r == '0':
			b.WriteRune('o')
		case r == '1':
			b.WriteRune('l')
		case r == '5':
			b.WriteRune('s')
		}
	}
	return b.String()
}

// foldCapturedText applies NFKD normalization and strips combining
// marks, so OCR artifacts around accented characters do not defeat the
// pattern rules.
func foldCapturedText(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

func splitSegments(text string) []string {
	var segments []string
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range strings.Split(line, "|") {
			seg = strings.TrimSpace(seg)
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return segments
}

func (e *Extractor) parseDates(seg string, runDate time.Time, limit int) []time.Time {
	if limit <= 0 {
		return nil
	}

	var dates []time.Time
	lower := strings.ToLower(seg)
	if strings.Contains(lower, "tomorrow") {
		return []time.Time{runDate.AddDate(0, 0, 1)}
	}
	if strings.Contains(lower, "today") || strings.Contains(lower, "tonight") {
		return []time.Time{runDate}
	}

	for _, m := range dayFirstDateRe.FindAllStringSubmatch(seg, limit) {
		if d, ok := buildDate(m[1], m[2], m[3], runDate); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		for _, m := range monthFirstDateRe.FindAllStringSubmatch(seg, limit) {
			if d, ok := buildDate(m[2], m[1], m[3], runDate); ok {
				dates = append(dates, d)
			}
		}
	}
	if len(dates) == 0 && numericDateRe.MatchString(seg) {
		if d, err := dateparse.ParseAny(seg); err == nil {
			dates = append(dates, d)
		}
	}

	if len(dates) > limit {
		dates = dates[:limit]
	}
	return dates
}

func buildDate(dayStr, monStr, yearStr string, runDate time.Time) (time.Time, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := monthByName[strings.ToLower(monStr)[:3]]
	if !ok {
		return time.Time{}, false
	}
	year := runDate.Year()
	if yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year = y
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, runDate.Location()), true
}

func formatDates(dates []time.Time) string {
	switch len(dates) {
	case 0:
		return ""
	case 1:
		return dates[0].Format("Jan 2")
	default:
		if dates[0].Equal(dates[1]) {
			return dates[0].Format("Jan 2")
		}
		return dates[0].Format("Jan 2") + " - " + dates[1].Format("Jan 2")
	}
}

func (e *Extractor) parseTime(seg string) string {
	m := timeRe.FindStringSubmatch(seg)
	if m == nil {
		return ""
	}
	if m[2] == "" {
		return m[1]
	}
	return m[1] + " " + strings.ToUpper(m[2])
}

func (e *Extractor) parseVenue(seg string) string {
	if m := venuePrefixRe.FindStringSubmatch(seg); m != nil {
		return cleanVenue(m[1])
	}

	lower := strings.ToLower(seg)
	for _, keyword := range venueKeywords {
		if strings.Contains(lower, keyword) {
			// Guard against prose sentences picked up by OCR.
			if len(strings.Fields(seg)) <= 8 {
				return cleanVenue(seg)
			}
		}
	}
	return ""
}

func cleanVenue(venue string) string {
	venue = ocrNoiseRe.ReplaceAllString(venue, "")
	return strings.TrimRight(strings.TrimSpace(venue), ",;:-")
}

func (e *Extractor) parseLanguage(seg string) string {
	for _, lang := range knownLanguages {
		if strings.Contains(seg, lang) {
			return lang
		}
	}
	return ""
}

func (e *Extractor) parseAgeLimit(seg string) string {
	lower := strings.ToLower(seg)
	if !strings.Contains(lower, "age") && !strings.Contains(lower, "yr") && !strings.Contains(lower, "year") {
		return ""
	}
	m := ageLimitRe.FindStringSubmatch(seg)
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[1] + "yrs+"
	}
	return m[1] + "yrs"
}

func (e *Extractor) parseStatus(seg string) (string, bool) {
	if m := statusPrefixRe.FindStringSubmatch(seg); m != nil {
		raw := strings.TrimSpace(m[1])
		if mapped, ok := MapStatusBadge(raw); ok {
			return mapped, false
		}
		return raw, true
	}
	if mapped, ok := MapStatusBadge(seg); ok && len(seg) <= 24 {
		return mapped, false
	}
	return "", false
}

// parsePrice collects every currency-adjacent amount and collapses
// multiple mentions into the widest observed range.
func (e *Extractor) parsePrice(segments []string) string {
	min, max := 0, 0

	for _, seg := range segments {
		seg = ocrRupeeRe.ReplaceAllString(seg, "${1}₹${2}")
		if !currencyRe.MatchString(seg) {
			continue
		}

		// Strip dates and times so their digits are not read as amounts.
		cleaned := dayFirstDateRe.ReplaceAllString(seg, " ")
		cleaned = monthFirstDateRe.ReplaceAllString(cleaned, " ")
		cleaned = timeRe.ReplaceAllString(cleaned, " ")
		hasSuffix := priceSuffixRe.MatchString(cleaned)

		for _, m := range amountRe.FindAllStringSubmatch(cleaned, -1) {
			value, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if value < 50 && !hasSuffix {
				continue
			}
			if min == 0 || value < min {
				min = value
			}
			if value > max {
				max = value
			}
		}
	}

	switch {
	case min == 0:
		return ""
	case min == max:
		return strconv.Itoa(min)
	default:
		return fmt.Sprintf("%d-%d", min, max)
	}
}

// confidenceFor grades the extraction by the required field set: date,
// venue and price.
func confidenceFor(ex Extraction) Confidence {
	parsed := 0
	for _, field := range []string{ex.EventDate, ex.Venue, ex.PriceRange} {
		if field != "" {
			parsed++
		}
	}
	switch parsed {
	case 3:
		return ConfidenceHigh
	case 0:
		return ConfidenceFailed
	default:
		return ConfidencePartial
	}
}
