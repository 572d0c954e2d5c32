package auth

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the huma operation metadata key holding a Requirement.
const MetadataKey = "auth"

// Requirement states whether an operation needs an authenticated owner.
type Requirement int

const (
	// Optional attaches the owner when a valid token is sent and proceeds anonymously otherwise.
	Optional Requirement = iota + 1
	// Required rejects requests without a valid token.
	Required
)

// RequirementOf returns the requirement declared on op, or zero when none is.
func RequirementOf(op *huma.Operation) Requirement {
	if op == nil || op.Metadata == nil {
		return 0
	}

	req, _ := op.Metadata[MetadataKey].(Requirement)

	return req
}
