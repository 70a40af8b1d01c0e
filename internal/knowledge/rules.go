package knowledge

import "strings"

const convictionVotingRules = `Significant fields of data: voteType, referendumIndex, votingPower, conviction, aye, nay, abstain, token, action, amount, to.
Compose one sentence from these fields. Do not mention fields that are missing.
If voteType is "Aye" or "Nay":
  "You are voting [voteType] on referendum #[referendumIndex] using [votingPower] [token] as voting power."
  If conviction is present and not "None", append: "Your tokens are locked with [conviction] conviction."
If voteType is "Split":
  "You are splitting your vote on referendum #[referendumIndex]: [aye] [token] aye and [nay] [token] nay."
If voteType is "SplitAbstain":
  "You are splitting your vote on referendum #[referendumIndex]: [aye] [token] aye, [nay] [token] nay and [abstain] [token] abstain."
If action is "delegate":
  "You are delegating [amount] [token] of voting power to [to] with [conviction] conviction."
If action is "undelegate":
  "You are removing your governance delegation."
If only referendumIndex is present:
  "You are voting on referendum #[referendumIndex]."`

const balancesRules = `Significant fields of data: amount, to, token, action.
Compose one sentence from these fields.
If action is "transfer all":
  "You are transferring your entire transferable [token] balance to [to]."
Otherwise:
  "You are sending [amount] [token] to [to]."
If amount is 0, say the amount could not be determined instead of writing 0.`

const nominationPoolsRules = `Significant fields of data: action, amount, poolId, token, metadata, account.
Compose one sentence from these fields. Do not mention fields that are missing.
If action starts or increases stake ("join pool", "stake more", "stake more for member", "create pool"):
  "You are staking [amount] [token] in nomination pool #[poolId]."
  For "create pool": "You are creating nomination pool #[poolId] with an initial stake of [amount] [token]."
If action reduces or stops stake ("unstake"):
  "You are unstaking [amount] [token] from your nomination pool for [account]. The funds can be withdrawn after the unbonding period."
If action withdraws funds ("withdraw", "claim rewards"):
  "You are claiming your pending pool rewards." for "claim rewards"
  "You are withdrawing your unbonded [token] from the pool." for "withdraw"
If action changes pool settings ("set pool name", "set pool state"):
  "You are renaming nomination pool #[poolId] to [metadata]." for "set pool name"
  "You are changing the state of nomination pool #[poolId]." for "set pool state"
If amount is "0", leave the amount out of the sentence.`

const stakingRules = `Significant fields of data: action, amount, token, validators.
Compose one sentence from these fields. Do not mention fields that are missing.
If action starts or increases stake ("stake", "stake more", "restake"):
  "You are staking [amount] [token]."
  For "restake": "You are restaking [amount] [token] that was scheduled to unlock."
If action reduces or stops stake ("unstake", "remove validators"):
  "You are unstaking [amount] [token]. The funds unlock after the unbonding period." for "unstake"
  "You are stopping nomination and removing your selected validators." for "remove validators"
If action withdraws funds ("withdraw"):
  "You are withdrawing your unlocked [token] back to your free balance."
If action changes validators ("nominate", "select validators"):
  "You are nominating [validators count] validators: [validators]."
If amount is "0", leave the amount out of the sentence.`

// sectionRules is keyed by section name, lowercased with '-' and '_' removed
var sectionRules = map[string]string{
	"convictionvoting": convictionVotingRules,
	"balances":         balancesRules,
	"nominationpools":  nominationPoolsRules,
	"staking":          stakingRules,
	"solostaking":      stakingRules,
}

var sectionReplacer = strings.NewReplacer("-", "", "_", "")

func normalizeSection(sectionName string) string {
	return sectionReplacer.Replace(strings.ToLower(strings.TrimSpace(sectionName)))
}

// RulesFor returns the prompt template for a section, or "" when the section has none
func RulesFor(sectionName string) string {
	return sectionRules[normalizeSection(sectionName)]
}

// HasRules reports whether RulesFor has a template for sectionName
func HasRules(sectionName string) bool {
	_, ok := sectionRules[normalizeSection(sectionName)]
	return ok
}
