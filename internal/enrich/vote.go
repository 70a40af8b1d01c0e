package enrich

import (
	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson"
)

// VoteKind identifies which ballot shape an AccountVote carries
type VoteKind int

const (
	VoteUnknown VoteKind = iota
	VoteStandard
	VoteSplit
	VoteSplitAbstain
)

func (k VoteKind) String() string {
	switch k {
	case VoteStandard:
		return "Standard"
	case VoteSplit:
		return "Split"
	case VoteSplitAbstain:
		return "SplitAbstain"
	default:
		return "Unknown"
	}
}

// ballotKeys lists the ballot shapes in decoding priority order
var ballotKeys = []struct {
	key  string
	kind VoteKind
}{
	{"standard", VoteStandard},
	{"split", VoteSplit},
	{"splitAbstain", VoteSplitAbstain},
}

// AccountVote is a decoded conviction-voting ballot. Only the fields of its
// Kind are meaningful.
type AccountVote struct {
	Kind VoteKind

	// Standard
	Aye        bool
	Conviction string
	Balance    decimal.Decimal

	// Split and SplitAbstain
	AyeAmount     decimal.Decimal
	NayAmount     decimal.Decimal
	AbstainAmount decimal.Decimal
}

// convictions indexes the lock multiplier names by the low seven ballot bits
var convictions = []string{"None", "Locked1x", "Locked2x", "Locked3x", "Locked4x", "Locked5x", "Locked6x"}

// DecodeAccountVote decodes the first ballot shape present, in the order
// standard, split, splitAbstain.
func DecodeAccountVote(v *fastjson.Value) AccountVote {
	kind := VoteUnknown
	for _, ballot := range ballotKeys {
		if present(v, ballot.key) {
			kind = ballot.kind
			break
		}
	}

	switch kind {
	case VoteStandard:
		ballot := v.Get("standard")
		aye, conviction := decodeBallotByte(ballot.Get("vote"))
		balance, _ := argAmount(ballot, "balance")
		return AccountVote{
			Kind:       VoteStandard,
			Aye:        aye,
			Conviction: conviction,
			Balance:    balance,
		}
	case VoteSplit:
		ballot := v.Get("split")
		aye, _ := argAmount(ballot, "aye")
		nay, _ := argAmount(ballot, "nay")
		return AccountVote{Kind: VoteSplit, AyeAmount: aye, NayAmount: nay}
	case VoteSplitAbstain:
		ballot := v.Get("splitAbstain")
		aye, _ := argAmount(ballot, "aye")
		nay, _ := argAmount(ballot, "nay")
		abstain, _ := argAmount(ballot, "abstain")
		return AccountVote{Kind: VoteSplitAbstain, AyeAmount: aye, NayAmount: nay, AbstainAmount: abstain}
	default:
		return AccountVote{Kind: VoteUnknown}
	}
}

// decodeBallotByte reads the packed vote byte, given either as a hex string or a number
func decodeBallotByte(v *fastjson.Value) (bool, string) {
	if v == nil {
		return false, ""
	}

	var b uint64
	switch v.Type() {
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		n, ok := parseHexByte(s)
		if !ok {
			return false, ""
		}
		return IsAye(s), convictionName(n)
	case fastjson.TypeNumber:
		n, err := v.Uint64()
		if err != nil {
			return false, ""
		}
		b = n
	default:
		return false, ""
	}

	return b&ayeMask != 0, convictionName(b)
}

func convictionName(b uint64) string {
	level := b &^ ayeMask
	if level < uint64(len(convictions)) {
		return convictions[level]
	}
	return ""
}
