package enrich

import (
	"github.com/shopspring/decimal"

	"github.com/txplain/callplain/internal/models"
)

// Handler decodes one call family into display data
type Handler func(call *models.RawCall) *models.EnrichedTx

// Summary hints attached to known results
const (
	HintTransfer   = "token transfer"
	HintBatch      = "batch call"
	HintDelegation = "governance delegation"
	HintVote       = "governance vote"
	HintPool       = "pool staking"
	HintPoolAdmin  = "pool management"
	HintStaking    = "staking"
	HintProxy      = "proxy call"
)

// Vote type labels
const (
	VoteTypeAye          = "Aye"
	VoteTypeNay          = "Nay"
	VoteTypeSplit        = "Split"
	VoteTypeSplitAbstain = "SplitAbstain"
)

func known(hint string, data map[string]interface{}) *models.EnrichedTx {
	return &models.EnrichedTx{
		Type:        models.EnrichedKnown,
		SummaryHint: hint,
		Data:        data,
	}
}

// amountOrZero formats an amount, falling back to the string "0" when it rounds to nothing
func amountOrZero(raw decimal.Decimal, decimals int) interface{} {
	if amount := FormatAmount(raw, decimals); amount != 0 {
		return amount
	}
	return "0"
}

// handleTransfer covers transfer, transferAllowDeath and transferKeepAlive
func handleTransfer(call *models.RawCall) *models.EnrichedTx {
	value, _ := argAmount(call.Args, "value")
	return known(HintTransfer, map[string]interface{}{
		"amount": FormatAmount(value, call.Decimal),
		"to":     ToShortAddress(argAccount(call.Args, "dest")),
		"token":  call.Token,
	})
}

// handleTransferAll moves the whole free balance, so no amount is known up front
func handleTransferAll(call *models.RawCall) *models.EnrichedTx {
	return known(HintTransfer, map[string]interface{}{
		"action": "transfer all",
		"to":     ToShortAddress(argAccount(call.Args, "dest")),
		"token":  call.Token,
	})
}

func handleBatch(call *models.RawCall) *models.EnrichedTx {
	return known(HintBatch, map[string]interface{}{
		"action":     "batch",
		"callsCount": argLen(call.Args, "calls"),
	})
}

func handleDelegate(call *models.RawCall) *models.EnrichedTx {
	balance, _ := argAmount(call.Args, "balance")
	return known(HintDelegation, map[string]interface{}{
		"action":     StakingActionCleaner(call.Method),
		"amount":     amountOrZero(balance, call.Decimal),
		"conviction": argPlain(call.Args, "conviction"),
		"to":         ToShortAddress(argAccount(call.Args, "to")),
		"token":      call.Token,
	})
}

func handleVote(call *models.RawCall) *models.EnrichedTx {
	referendumIndex := argPlain(call.Args, "poll_index")
	vote := DecodeAccountVote(call.Args.Get("vote"))

	data := map[string]interface{}{
		"referendumIndex": referendumIndex,
		"token":           call.Token,
	}

	switch vote.Kind {
	case VoteStandard:
		data["voteType"] = VoteTypeNay
		if vote.Aye {
			data["voteType"] = VoteTypeAye
		}
		data["votingPower"] = FormatAmount(vote.Balance, call.Decimal)
		if vote.Conviction != "" {
			data["conviction"] = vote.Conviction
		}
	case VoteSplit:
		data["voteType"] = VoteTypeSplit
		data["aye"] = FormatAmount(vote.AyeAmount, call.Decimal)
		data["nay"] = FormatAmount(vote.NayAmount, call.Decimal)
	case VoteSplitAbstain:
		data["voteType"] = VoteTypeSplitAbstain
		data["aye"] = FormatAmount(vote.AyeAmount, call.Decimal)
		data["nay"] = FormatAmount(vote.NayAmount, call.Decimal)
		data["abstain"] = FormatAmount(vote.AbstainAmount, call.Decimal)
	default:
		return &models.EnrichedTx{
			Type: models.EnrichedGeneric,
			Data: map[string]interface{}{"referendumIndex": referendumIndex},
		}
	}

	return known(HintVote, data)
}

// handlePoolStaking covers the nomination pool calls that move funds into a pool
func handlePoolStaking(call *models.RawCall) *models.EnrichedTx {
	raw := firstAmount(call.Args,
		[]string{"amount"},
		[]string{"extra", "freeBalance"},
		[]string{"extra", "rewards"},
	)

	var amount interface{} = "0"
	if raw.IsPositive() {
		amount = FormatAmount(raw, call.Decimal)
	}

	return known(HintPool, map[string]interface{}{
		"action": StakingActionCleaner(call.Method),
		"amount": amount,
		"poolId": argPlain(call.Args, "pool_id"),
		"token":  call.Token,
	})
}

func handlePoolSetMetadata(call *models.RawCall) *models.EnrichedTx {
	return known(HintPoolAdmin, map[string]interface{}{
		"action":   StakingActionCleaner(call.Method),
		"metadata": decodeMetadata(call.Args, "metadata"),
		"poolId":   argPlain(call.Args, "pool_id"),
	})
}

func handlePoolUnbond(call *models.RawCall) *models.EnrichedTx {
	points, _ := argAmount(call.Args, "unbonding_points")
	return known(HintPool, map[string]interface{}{
		"account": ToShortAddress(argAccount(call.Args, "member_account")),
		"action":  StakingActionCleaner(call.Method),
		"amount":  amountOrZero(points, call.Decimal),
		"token":   call.Token,
	})
}

// handleStaking covers solo staking calls that carry at most one amount
func handleStaking(call *models.RawCall) *models.EnrichedTx {
	raw := firstAmount(call.Args,
		[]string{"value"},
		[]string{"max_additional"},
	)
	return known(HintStaking, map[string]interface{}{
		"action": StakingActionCleaner(call.Method),
		"amount": amountOrZero(raw, call.Decimal),
		"token":  call.Token,
	})
}

func handleNominate(call *models.RawCall) *models.EnrichedTx {
	validators := []string{}
	if targets := call.Args.Get("targets"); targets != nil {
		items, _ := targets.Array()
		for _, target := range items {
			validators = append(validators, ToShortAddress(accountString(target)))
		}
	}

	return known(HintStaking, map[string]interface{}{
		"action":     "nominate",
		"validators": validators,
	})
}

// handleProxy describes the proxy wrapper only; the inner call is left alone
func handleProxy(call *models.RawCall) *models.EnrichedTx {
	return known(HintProxy, map[string]interface{}{
		"proxiedAccount": ToShortAddress(argAccount(call.Args, "real")),
	})
}
