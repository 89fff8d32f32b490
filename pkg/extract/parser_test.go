package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "APC 245", []string{"245"}},
		{"thousands separator", "Registered voters: 1,234", []string{"1234"}},
		{"several numbers", "12 APC 245", []string{"12", "245"}},
		{"confused digits", "PDP l2O", []string{"120"}},
		{"pipe and letter repaired", "LP |S", []string{"15"}},
		{"letters only", "no score recorded", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractNumbers(tc.in))
		})
	}
}

func TestExtractNumbersPrefersCleanDigits(t *testing.T) {
	// When a clean number exists, no repair is attempted on the rest.
	assert.Equal(t, []string{"42"}, ExtractNumbers("APC 42 OIZ"))
}

func TestParseResultSheetFullSheet(t *testing.T) {
	text := `INEC CHAIRMANSHIP ELECTION
AMAC / City Centre / PU 001
Number of Registered Voters: 1,200
Number of Accredited Voters: 650
APC 245
PDP 198
LP 87
SDP 45
Total Valid Votes 575
Rejected Ballots 12`

	got := ParseResultSheet(text)

	assert.Equal(t, 1200, got.RegisteredVoters)
	assert.Equal(t, 650, got.AccreditedVoters)
	assert.Equal(t, 575, got.TotalValidVotes)
	assert.Equal(t, 12, got.TotalRejectedVotes)
	assert.Equal(t, map[string]int{"APC": 245, "PDP": 198, "LP": 87, "SDP": 45}, got.PartyVotes)

	// reg 10 + accr 10 + parties 15+15+10 + valid 15 + rejected 5 +
	// ratio (575/575) 10 + accr<=reg 5
	assert.Equal(t, 95.0, got.Confidence)
}

func TestParseResultSheetEmptyText(t *testing.T) {
	got := ParseResultSheet("   \n  ")
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.PartyVotes)
}

func TestParseResultSheetAliases(t *testing.T) {
	got := ParseResultSheet("A.P.C 120\nPOP 95")
	assert.Equal(t, map[string]int{"APC": 120, "PDP": 95}, got.PartyVotes)
}

// A row that still carries its serial-number column assigns the serial as the
// vote. The first number on a party line always wins.
func TestParseResultSheetPartyRowFirstNumberWins(t *testing.T) {
	got := ParseResultSheet("3 LP 87")
	assert.Equal(t, map[string]int{"LP": 3}, got.PartyVotes)
}

func TestParseResultSheetSanityRanges(t *testing.T) {
	got := ParseResultSheet(`Registered Voters 99999
Accredited Voters 400
APC 50000
Total Valid Votes 99999`)

	// Out-of-range values are dropped, not clamped.
	assert.Zero(t, got.RegisteredVoters)
	assert.Equal(t, 400, got.AccreditedVoters)
	assert.Empty(t, got.PartyVotes)
	assert.Zero(t, got.TotalValidVotes)
}

func TestParseResultSheetRegisteredBelowMinimum(t *testing.T) {
	got := ParseResultSheet("Registered Voters 5")
	assert.Zero(t, got.RegisteredVoters)
}

func TestParseResultSheetInfersValidFromPartySum(t *testing.T) {
	got := ParseResultSheet("APC 100\nPDP 50")
	assert.Equal(t, 150, got.TotalValidVotes)
	// parties 15+15, inferred valid 15, perfect ratio 10
	assert.Equal(t, 55.0, got.Confidence)
}

func TestParseResultSheetTotalsTakeLastNumber(t *testing.T) {
	got := ParseResultSheet("22 Total Valid Votes 575")
	assert.Equal(t, 575, got.TotalValidVotes)
}

func TestParseResultSheetVoterLinesTakeFirstNumber(t *testing.T) {
	got := ParseResultSheet("Registered Voters 1200 of 1500")
	assert.Equal(t, 1200, got.RegisteredVoters)
}

func TestParseResultSheetConfidenceCapped(t *testing.T) {
	text := `Registered Voters 1200
Accredited Voters 900
APC 100
PDP 90
LP 80
SDP 70
ADC 60
NNPP 50
APGA 40
YPP 30
Total Valid Votes 520
Rejected 3`
	got := ParseResultSheet(text)
	require.Len(t, got.PartyVotes, 8)
	assert.Equal(t, 100.0, got.Confidence)
}

func TestParseResultSheetNoFalsePartyInsideWord(t *testing.T) {
	// "CAPACITY" must not match party AA or APC mid-word.
	got := ParseResultSheet("CAPACITY 500")
	assert.Empty(t, got.PartyVotes)
}
