package contracts

import "context"

// Validator is implemented by payloads that can check their own
// invariants. The validation interceptor calls Validate before letting
// the payload travel further down the pipeline.
type Validator interface {
	Validate(ctx context.Context) error
}
