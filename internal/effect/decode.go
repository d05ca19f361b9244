package effect

import (
	"encoding/json"

	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// ParseCondition decodes a structured proposal interpretation's
// condition tree (raw JSON object, as produced by the AI gateway or
// authored directly on a Move) into a Condition. A nil/empty raw
// decodes to an always-true condition.
func ParseCondition(raw map[string]any) (Condition, error) {
	if len(raw) == 0 {
		return Condition{Kind: ConditionAlwaysTrue}, nil
	}
	var c Condition
	if err := roundTrip(raw, &c); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// ParseMutations decodes a list of structured proposal interpretation
// actions into Mutations.
func ParseMutations(raw []map[string]any) ([]Mutation, error) {
	out := make([]Mutation, 0, len(raw))
	for _, m := range raw {
		var mutation Mutation
		if err := roundTrip(m, &mutation); err != nil {
			return nil, err
		}
		out = append(out, mutation)
	}
	return out, nil
}

func roundTrip(raw map[string]any, v any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "encode effect fragment", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "decode effect fragment", err)
	}
	return nil
}
