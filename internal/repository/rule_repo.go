package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/imageguard/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleRepository is the durable rule store: reference images and their
// per-scope registrations.
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new RuleRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *RuleRepository: repository instance bound to db.
func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// storeErr tags infrastructure failures so callers can fail closed.
// Context cancellation is passed through untagged.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// AddReference stores a fingerprint for contentID unless one already exists.
// The sequence number comes from the table's auto-increment key, so
// concurrent callers never receive the same number.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - contentID: stable content identifier.
//   - fingerprint: perceptual hash of the image.
//
// Returns:
//   - *domain.ReferenceImage: the stored (new or existing) reference.
//   - bool: true if this call inserted the row.
//   - error: wraps domain.ErrStoreUnavailable on database failure.
func (r *RuleRepository) AddReference(ctx context.Context, contentID, fingerprint string) (*domain.ReferenceImage, bool, error) {
	ref := &domain.ReferenceImage{
		ContentID:   contentID,
		Fingerprint: fingerprint,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}},
		DoNothing: true,
	}).Create(ref)
	if res.Error != nil {
		return nil, false, storeErr("add reference", res.Error)
	}
	if res.RowsAffected == 1 && ref.Seq != 0 {
		return ref, true, nil
	}

	existing, err := r.GetReference(ctx, contentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetReference retrieves a reference image by content identifier.
// Returns domain.ErrNotFound if none is stored.
func (r *RuleRepository) GetReference(ctx context.Context, contentID string) (*domain.ReferenceImage, error) {
	var ref domain.ReferenceImage
	if err := r.db.WithContext(ctx).First(&ref, "content_id = ?", contentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reference %q: %w", contentID, domain.ErrNotFound)
		}
		return nil, storeErr("get reference", err)
	}
	return &ref, nil
}

// LookupBySequence retrieves a reference image by its global sequence number.
// Returns domain.ErrNotFound if no reference has that number.
func (r *RuleRepository) LookupBySequence(ctx context.Context, seq uint) (*domain.ReferenceImage, error) {
	var ref domain.ReferenceImage
	if err := r.db.WithContext(ctx).First(&ref, "seq = ?", seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sequence %d: %w", seq, domain.ErrNotFound)
		}
		return nil, storeErr("lookup sequence", err)
	}
	return &ref, nil
}

// RegisterInScope links an existing reference image to a scope.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scopeID: scope (channel/guild) identifier.
//   - contentID: content identifier of a stored reference.
//
// Returns:
//   - error: domain.ErrAlreadyRegistered if the pair exists, domain.ErrNotFound
//     if the reference is unknown, domain.ErrStoreUnavailable otherwise.
func (r *RuleRepository) RegisterInScope(ctx context.Context, scopeID, contentID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&domain.ReferenceImage{}).Where("content_id = ?", contentID).Count(&refs).Error; err != nil {
			return err
		}
		if refs == 0 {
			return fmt.Errorf("reference %q: %w", contentID, domain.ErrNotFound)
		}

		var existing int64
		if err := tx.Model(&domain.ScopeRegistration{}).
			Where("scope_id = ? AND content_id = ?", scopeID, contentID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyRegistered
		}

		reg := &domain.ScopeRegistration{ScopeID: scopeID, ContentID: contentID}
		if err := tx.Create(reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAlreadyRegistered), errors.Is(err, domain.ErrNotFound):
		return err
	default:
		return storeErr("register in scope", err)
	}
}

// UnregisterInScope removes the link between a scope and a reference image.
// Registrations in other scopes are untouched. When no scope references the
// image any more its row is deleted in the same transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scopeID: scope identifier.
//   - contentID: content identifier.
//
// Returns:
//   - bool: true if the reference image became unreferenced and was removed.
//   - error: domain.ErrNotFound if the pair does not exist.
func (r *RuleRepository) UnregisterInScope(ctx context.Context, scopeID, contentID string) (bool, error) {
	orphaned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("scope_id = ? AND content_id = ?", scopeID, contentID).Delete(&domain.ScopeRegistration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("scope %q content %q: %w", scopeID, contentID, domain.ErrNotFound)
		}

		var remaining int64
		if err := tx.Model(&domain.ScopeRegistration{}).Where("content_id = ?", contentID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.Where("content_id = ?", contentID).Delete(&domain.ReferenceImage{}).Error; err != nil {
				return err
			}
			orphaned = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		return false, storeErr("unregister in scope", err)
	}
	return orphaned, nil
}

// DeleteReferenceIfUnregistered removes the reference for contentID when no
// scope registers it. It reports whether a row was deleted; an unknown
// content id is not an error.
func (r *RuleRepository) DeleteReferenceIfUnregistered(ctx context.Context, contentID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var regs int64
		if err := tx.Model(&domain.ScopeRegistration{}).Where("content_id = ?", contentID).Count(&regs).Error; err != nil {
			return err
		}
		if regs > 0 {
			return nil
		}
		res := tx.Where("content_id = ?", contentID).Delete(&domain.ReferenceImage{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, storeErr("delete unregistered reference", err)
	}
	return deleted, nil
}

// IsRegistered reports whether contentID is registered in scopeID.
func (r *RuleRepository) IsRegistered(ctx context.Context, scopeID, contentID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ScopeRegistration{}).
		Where("scope_id = ? AND content_id = ?", scopeID, contentID).
		Count(&count).Error; err != nil {
		return false, storeErr("check registration", err)
	}
	return count > 0, nil
}

// ListByScope retrieves a page of a scope's reference images in registration order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scopeID: scope identifier.
//   - page: 1-based page number; values below 1 are treated as 1.
//   - pageSize: number of records per page.
//
// Returns:
//   - []domain.ReferenceImage: references on the requested page.
//   - error: wraps domain.ErrStoreUnavailable on database failure.
func (r *RuleRepository) ListByScope(ctx context.Context, scopeID string, page, pageSize int) ([]domain.ReferenceImage, error) {
	if page < 1 {
		page = 1
	}
	var refs []domain.ReferenceImage
	if err := r.db.WithContext(ctx).
		Model(&domain.ReferenceImage{}).
		Select("reference_images.*").
		Joins("JOIN scope_registrations ON scope_registrations.content_id = reference_images.content_id").
		Where("scope_registrations.scope_id = ?", scopeID).
		Order("scope_registrations.id ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&refs).Error; err != nil {
		return nil, storeErr("list by scope", err)
	}
	return refs, nil
}

// CountByScope counts the reference images registered in a scope.
func (r *RuleRepository) CountByScope(ctx context.Context, scopeID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ScopeRegistration{}).
		Where("scope_id = ?", scopeID).
		Count(&count).Error; err != nil {
		return 0, storeErr("count by scope", err)
	}
	return count, nil
}

// ScopeContentIDs returns the content identifiers registered in a scope,
// mapped to their sequence numbers.
func (r *RuleRepository) ScopeContentIDs(ctx context.Context, scopeID string) (map[string]uint, error) {
	rows, err := r.scopeRows(ctx, scopeID, "reference_images.seq AS seq, reference_images.content_id AS content_id")
	if err != nil {
		return nil, storeErr("scope content ids", err)
	}
	ids := make(map[string]uint, len(rows))
	for _, row := range rows {
		ids[row.ContentID] = row.Seq
	}
	return ids, nil
}

// FingerprintsForScope returns the rule set the matcher compares against,
// in registration order.
func (r *RuleRepository) FingerprintsForScope(ctx context.Context, scopeID string) ([]domain.ScopedFingerprint, error) {
	rows, err := r.scopeRows(ctx, scopeID,
		"reference_images.seq AS seq, reference_images.content_id AS content_id, reference_images.fingerprint AS fingerprint")
	if err != nil {
		return nil, storeErr("scope fingerprints", err)
	}
	return rows, nil
}

func (r *RuleRepository) scopeRows(ctx context.Context, scopeID, columns string) ([]domain.ScopedFingerprint, error) {
	var rows []domain.ScopedFingerprint
	err := r.db.WithContext(ctx).
		Model(&domain.ScopeRegistration{}).
		Select(columns).
		Joins("JOIN reference_images ON reference_images.content_id = scope_registrations.content_id").
		Where("scope_registrations.scope_id = ?", scopeID).
		Order("scope_registrations.id ASC").
		Scan(&rows).Error
	return rows, err
}
