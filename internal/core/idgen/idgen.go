package idgen

import "github.com/google/uuid"

// UUIDGenerator hands out random (v4) UUIDs as transaction identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) GenerateTransactionID() string {
	return uuid.NewString()
}
