package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Parties printed on the result-sheet score table, in form order.
var Parties = []string{
	"APC", "PDP", "LP", "NNPP", "SDP", "ADC", "APGA", "AA", "ADP", "APM", "ZLP",
	"YPP", "NRM", "BOOT", "BP", "APP", "PRP", "AAC", "Action Alliance",
}

// partyAliases maps frequent misreads of handwritten party labels to their
// canonical abbreviation.
var partyAliases = []struct{ alias, canonical string }{
	{"A.P.C", "APC"}, {"A P C", "APC"}, {"APC.", "APC"}, {"APPC", "APC"},
	{"P.D.P", "PDP"}, {"P D P", "PDP"}, {"PDP.", "PDP"}, {"POP", "PDP"},
	{"L.P", "LP"}, {"L P", "LP"}, {"LP.", "LP"},
	{"N.N.P.P", "NNPP"}, {"NNPP.", "NNPP"},
	{"S.D.P", "SDP"}, {"S D P", "SDP"}, {"SDP.", "SDP"},
	{"A.D.C", "ADC"}, {"ADC.", "ADC"},
	{"A.P.G.A", "APGA"}, {"APGA.", "APGA"},
	{"A.A", "AA"}, {"AA.", "AA"},
	{"A.D.P", "ADP"}, {"ADP.", "ADP"},
	{"Y.P.P", "YPP"}, {"YPP.", "YPP"},
	{"A.P.M", "APM"}, {"APM.", "APM"},
	{"Z.L.P", "ZLP"}, {"ZLP.", "ZLP"},
}

// digitFixes substitutes characters the recognizer commonly confuses for
// digits in handwritten figures.
var digitFixes = []struct{ old, new string }{
	{"O", "0"}, {"o", "0"}, {"Q", "0"},
	{"l", "1"}, {"I", "1"}, {"i", "1"}, {"|", "1"},
	{"Z", "2"}, {"z", "2"},
	{"E", "3"},
	{"A", "4"},
	{"S", "5"}, {"s", "5"},
	{"G", "6"}, {"b", "6"},
	{"T", "7"},
	{"B", "8"},
	{"g", "9"}, {"q", "9"},
}

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d)`)
	cleanNumber  = regexp.MustCompile(`\b\d{1,7}\b`)
	numberLike   = regexp.MustCompile(`[\dOoQlIi|ZzESsGbTBgqA]{1,7}`)
	allDigits    = regexp.MustCompile(`^\d{1,7}$`)

	partyPatterns = buildPartyPatterns()
)

func buildPartyPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(Parties))
	for i, p := range Parties {
		// Match the abbreviation at a word boundary or after a serial
		// number column.
		out[i] = regexp.MustCompile(`(?:^|\b|\d\s+)` + regexp.QuoteMeta(strings.ToUpper(p)) + `(?:\b|\s|$|\.)`)
	}
	return out
}

// ExtractNumbers pulls every number-looking token out of a line of recognized
// text. Thousands separators are collapsed first; when no clean number is
// found it repairs digit-shaped letters before giving up.
func ExtractNumbers(text string) []string {
	cleaned := thousandsSep.ReplaceAllString(text, "${1}${2}")
	if nums := cleanNumber.FindAllString(cleaned, -1); len(nums) > 0 {
		return nums
	}

	var out []string
	for _, cand := range numberLike.FindAllString(text, -1) {
		fixed := cand
		for _, f := range digitFixes {
			fixed = strings.ReplaceAll(fixed, f.old, f.new)
		}
		if allDigits.MatchString(fixed) {
			out = append(out, fixed)
		}
	}
	return out
}

// ParsedSheet is the vote data lifted off one recognized result sheet.
type ParsedSheet struct {
	RegisteredVoters   int            `json:"registered_voters"`
	AccreditedVoters   int            `json:"accredited_voters"`
	TotalValidVotes    int            `json:"total_valid_votes"`
	TotalRejectedVotes int            `json:"total_rejected_votes"`
	PartyVotes         map[string]int `json:"party_votes"`
	Confidence         float64        `json:"confidence"`
}

var (
	registeredKeywords = []string{"REGISTER", "REG.", "REGIST", "REG VOT", "REG. VOT"}
	accreditedKeywords = []string{"ACCREDIT", "ACCRED", "ACCR", "ACRED"}
	validKeywords      = []string{"TOTAL VALID", "VALID VOTES", "TOTAL OF VALID", "VALID VOTE", "TOTAL VOTES CAST"}
	rejectedKeywords   = []string{"REJECTED", "REJECT", "REJEC"}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ParseResultSheet parses recognized text from a polling-unit result sheet.
// The sheets carry a header (election, area, ward, unit), a score table of
// party rows with figures, and a totals footer; both printed and handwritten
// sheets pass through here, so every field match tolerates digit misreads and
// enforces a per-unit sanity range.
func ParseResultSheet(text string) ParsedSheet {
	result := ParsedSheet{PartyVotes: map[string]int{}}
	if strings.TrimSpace(text) == "" {
		return result
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	textUpper := strings.ToUpper(text)

	// Voter counters from the header block.
	for _, line := range lines {
		lu := strings.ToUpper(strings.TrimSpace(line))
		nums := ExtractNumbers(line)
		if len(nums) == 0 {
			continue
		}
		if containsAny(lu, registeredKeywords) {
			if val, err := strconv.Atoi(nums[0]); err == nil && val >= 10 && val <= 10000 {
				result.RegisteredVoters = val
			}
		} else if containsAny(lu, accreditedKeywords) {
			if val, err := strconv.Atoi(nums[0]); err == nil && val <= 10000 {
				result.AccreditedVoters = val
			}
		}
	}

	// Party rows from the score table.
	partyFound := 0
	for _, line := range lines {
		lu := strings.ToUpper(strings.TrimSpace(line))
		nums := ExtractNumbers(line)
		if len(nums) == 0 {
			continue
		}

		matched := ""
		for i, pattern := range partyPatterns {
			if pattern.MatchString(lu) {
				matched = Parties[i]
				break
			}
		}
		if matched == "" {
			for _, a := range partyAliases {
				if strings.Contains(lu, strings.ToUpper(a.alias)) {
					matched = a.canonical
					break
				}
			}
		}
		if matched == "" {
			continue
		}

		if vote, err := strconv.Atoi(nums[0]); err == nil && vote <= 10000 {
			result.PartyVotes[matched] = vote
			partyFound++
		}
	}

	// Totals footer. The last number on the line wins because the label
	// often carries a serial number of its own.
	for _, line := range lines {
		lu := strings.ToUpper(strings.TrimSpace(line))
		nums := ExtractNumbers(line)
		if len(nums) == 0 {
			continue
		}
		if containsAny(lu, validKeywords) {
			if val, err := strconv.Atoi(nums[len(nums)-1]); err == nil && val <= 15000 {
				result.TotalValidVotes = val
			}
		} else if containsAny(lu, rejectedKeywords) {
			if val, err := strconv.Atoi(nums[len(nums)-1]); err == nil && val <= 5000 {
				result.TotalRejectedVotes = val
			}
		}
	}

	partySum := 0
	for _, v := range result.PartyVotes {
		partySum += v
	}
	if result.TotalValidVotes == 0 && partySum > 0 {
		result.TotalValidVotes = partySum
	}

	result.Confidence = float64(scoreSheet(result, partyFound, partySum, textUpper))
	return result
}

// scoreSheet grades how much of the sheet was recoverable, 0 to 100.
func scoreSheet(result ParsedSheet, partyFound, partySum int, textUpper string) int {
	score := 0
	if result.RegisteredVoters > 0 {
		score += 10
	}
	if result.AccreditedVoters > 0 {
		score += 10
	}
	if partyFound >= 1 {
		score += 15
	}
	if partyFound >= 2 {
		score += 15
	}
	if partyFound >= 4 {
		score += 10
	}
	if partyFound >= 8 {
		score += 5
	}
	if result.TotalValidVotes > 0 {
		score += 15
	}
	if containsAny(textUpper, []string{"REJECTED", "REJECT"}) {
		score += 5
	}

	if partySum > 0 && result.TotalValidVotes > 0 {
		ratio := float64(partySum) / float64(result.TotalValidVotes)
		if ratio >= 0.9 && ratio <= 1.1 {
			score += 10
		} else if ratio >= 0.7 && ratio <= 1.3 {
			score += 5
		}
	}

	if result.AccreditedVoters > 0 && result.RegisteredVoters > 0 &&
		result.AccreditedVoters <= result.RegisteredVoters {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}
