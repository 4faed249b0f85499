package adapters

import (
	"context"

	"github.com/google/uuid"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
)

// KYCStatusProvider answers verification checks from the owner record.
// The status itself is maintained by the identity service; this core
// only reads it.
type KYCStatusProvider struct {
	ownerRepo repositories.OwnerRepository
}

// NewKYCStatusProvider creates a new KYC status provider
func NewKYCStatusProvider(ownerRepo repositories.OwnerRepository) *KYCStatusProvider {
	return &KYCStatusProvider{ownerRepo: ownerRepo}
}

// IsApproved reports whether the owner has passed verification
func (p *KYCStatusProvider) IsApproved(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	owner, err := p.ownerRepo.GetByID(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return owner.KYCStatus == entities.KYCStatusApproved, nil
}
