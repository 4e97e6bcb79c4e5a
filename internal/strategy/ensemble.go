package strategy

import (
	"fmt"

	"github.com/newthinker/enercast/internal/core"
)

// ensemble combines member signals by majority vote. An action wins only if
// it has strictly more votes than each other action; anything else is hold.
func ensemble(members []*Generator, in Input) core.Signal {
	votes := map[core.Action]int{}
	for _, m := range members {
		votes[m.Generate(in).Action]++
	}

	buy, sell, hold := votes[core.ActionBuy], votes[core.ActionSell], votes[core.ActionHold]
	action := core.ActionHold
	switch {
	case buy > sell && buy > hold:
		action = core.ActionBuy
	case sell > buy && sell > hold:
		action = core.ActionSell
	}

	return core.Signal{
		Action:     action,
		Confidence: float64(votes[action]) / float64(len(members)),
		Reason:     fmt.Sprintf("votes buy=%d sell=%d hold=%d", buy, sell, hold),
	}
}

func validateEnsemble(p Params) error {
	if len(p.Members) < 2 {
		return core.ConfigError("ensemble needs at least 2 members, got %d", len(p.Members))
	}
	for i, m := range p.Members {
		if err := validate(m); err != nil {
			return core.ConfigError("ensemble member %d (%s): %v", i, m.Kind, err)
		}
	}
	return nil
}
