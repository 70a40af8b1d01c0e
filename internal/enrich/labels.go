package enrich

// stakingActions maps call method names to the verb shown to users
var stakingActions = map[string]string{
	"bond":             "stake",
	"bondExtra":        "stake more",
	"bondExtraOther":   "stake more for member",
	"unbond":           "unstake",
	"rebond":           "restake",
	"withdrawUnbonded": "withdraw",
	"chill":            "remove validators",
	"nominate":         "select validators",
	"setMetadata":      "set pool name",
	"setState":         "set pool state",
	"create":           "create pool",
	"createWithPoolId": "create pool",
	"join":             "join pool",
	"claimPayout":      "claim rewards",
	"delegate":         "delegate",
	"undelegate":       "undelegate",
}

// StakingActionCleaner maps a method name to a short display verb.
// Methods without a mapping are returned unchanged.
func StakingActionCleaner(method string) string {
	if action, ok := stakingActions[method]; ok {
		return action
	}
	return method
}
