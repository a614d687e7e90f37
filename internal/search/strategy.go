package search

import (
	"context"
)

// Strategy is one named attempt at answering a query.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, q Query) ([]Result, error)
}

// StrategyFailure records an error that a later strategy recovered from.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// Outcome names the strategy whose rows were used.
type Outcome struct {
	Strategy  string
	Results   []Result
	Recovered []StrategyFailure
}

// FirstNonEmpty runs strategies in order and stops at the first one that
// returns rows. Errors from all but the last strategy are recorded and the
// chain moves on. The last strategy's result is final: its error is returned
// as is, and an empty result is a successful, empty Outcome.
func FirstNonEmpty(ctx context.Context, q Query, strategies ...Strategy) (Outcome, error) {
	var out Outcome
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			out.Strategy = s.Name
			return out, err
		}
		last := i == len(strategies)-1
		rows, err := s.Run(ctx, q)
		out.Strategy = s.Name
		if err != nil {
			if last || ctx.Err() != nil {
				return out, err
			}
			out.Recovered = append(out.Recovered, StrategyFailure{Strategy: s.Name, Err: err})
			continue
		}
		if len(rows) > 0 || last {
			out.Results = rows
			return out, nil
		}
	}
	return out, nil
}
