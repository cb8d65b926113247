package models

// Operation declares one AI operation the caller intends to perform.
// Only derived attributes ever reach storage; the envelope itself is transient.
type Operation struct {
	Type     string `json:"type" validate:"required"`
	Model    string `json:"model" validate:"required"`
	Tokens   int    `json:"tokens" validate:"gte=0"`
	Provider string `json:"provider,omitempty"`
}

// CheckRequest is the caller-supplied request envelope: one or more declared
// operations plus a free-form context mapping. The context must carry metadata
// only; the evaluator rejects any envelope smuggling raw content fields.
type CheckRequest struct {
	Operations []Operation            `json:"operations" validate:"required,min=1,dive"`
	Context    map[string]interface{} `json:"context"`
}

// PrimaryOperation returns the first declared operation. The audit record and
// the blocked-decision metrics are labeled with it.
func (r *CheckRequest) PrimaryOperation() Operation {
	if len(r.Operations) == 0 {
		return Operation{}
	}
	return r.Operations[0]
}

// TotalTokens sums the token estimates across all declared operations.
func (r *CheckRequest) TotalTokens() int {
	total := 0
	for _, op := range r.Operations {
		total += op.Tokens
	}
	return total
}
