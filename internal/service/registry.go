package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/metrics"
	"github.com/timmy/imageguard/internal/storage"
)

const defaultPageSize = 5

// RegistryService implements the add / del / list commands over the rule store.
type RegistryService struct {
	store        RuleStore
	fingerprints *FingerprintService
	storage      storage.ObjectStorage
	pageSize     int
}

// RegistryConfig holds configuration for the registry service
type RegistryConfig struct {
	PageSize int
}

// NewRegistryService creates a new registry service
func NewRegistryService(store RuleStore, fingerprints *FingerprintService, objectStorage storage.ObjectStorage, cfg *RegistryConfig) *RegistryService {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &RegistryService{
		store:        store,
		fingerprints: fingerprints,
		storage:      objectStorage,
		pageSize:     pageSize,
	}
}

// Page is one page of a scope's reference images.
type Page struct {
	Items    []domain.ReferenceImage `json:"items"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Total    int64                   `json:"total"`
}

// Add registers an image in a scope.
// A known content id reuses the stored fingerprint; otherwise the image is
// loaded, normalized to PNG, hashed and stored as <seq>.png.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scopeID: scope the image is banned in.
//   - c: the image, by bytes or URL, with an optional platform content id.
//
// Returns:
//   - *domain.ReferenceImage: the stored reference.
//   - error: domain.ErrAlreadyRegistered, domain.ErrDecode, domain.ErrFetch,
//     domain.ErrStoreUnavailable.
func (s *RegistryService) Add(ctx context.Context, scopeID string, c domain.Candidate) (*domain.ReferenceImage, error) {
	ref, err := s.add(ctx, scopeID, c)
	metrics.RegistryOperations.WithLabelValues("add", outcome(err)).Inc()
	return ref, err
}

func (s *RegistryService) add(ctx context.Context, scopeID string, c domain.Candidate) (*domain.ReferenceImage, error) {
	if scopeID == "" {
		return nil, fmt.Errorf("%w: scope is required", domain.ErrInvalidInput)
	}

	if c.ContentID != "" {
		ref, err := s.registerKnown(ctx, scopeID, c.ContentID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return ref, err
		}
	}

	data, err := s.fingerprints.Load(ctx, c)
	if err != nil {
		return nil, err
	}

	contentID := c.ContentID
	if contentID == "" {
		contentID = domain.ContentIDFromBytes(data)
		ref, err := s.registerKnown(ctx, scopeID, contentID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return ref, err
		}
	}

	normalized, err := s.fingerprints.Hasher().NormalizePNG(data)
	if err != nil {
		return nil, err
	}
	fp, err := s.fingerprints.Hasher().Hash(normalized)
	if err != nil {
		return nil, err
	}

	ref, created, err := s.store.AddReference(ctx, contentID, fp)
	if err != nil {
		return nil, err
	}
	if created {
		s.saveImage(ctx, ref, normalized)
	}
	s.fingerprints.Remember(ctx, contentID, ref.Fingerprint)

	if err := s.store.RegisterInScope(ctx, scopeID, contentID); err != nil {
		if created {
			s.discardReference(ctx, ref)
		}
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldContentID: contentID,
		"seq":                 ref.Seq,
		"created":             created,
	}).Info(ctx, "Reference image registered")
	return ref, nil
}

// registerKnown links an already stored reference to the scope. It returns
// domain.ErrNotFound when contentID has no stored reference yet.
func (s *RegistryService) registerKnown(ctx context.Context, scopeID, contentID string) (*domain.ReferenceImage, error) {
	registered, err := s.store.IsRegistered(ctx, scopeID, contentID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, domain.ErrAlreadyRegistered
	}

	ref, err := s.store.GetReference(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RegisterInScope(ctx, scopeID, contentID); err != nil {
		return nil, err
	}
	s.fingerprints.Remember(ctx, contentID, ref.Fingerprint)

	logger.With(logger.Fields{
		logger.FieldContentID: contentID,
		"seq":                 ref.Seq,
	}).Info(ctx, "Known reference image registered in scope")
	return ref, nil
}

// saveImage stores the normalized PNG. The copy is only used for display,
// so failures are logged and do not fail the registration.
func (s *RegistryService) saveImage(ctx context.Context, ref *domain.ReferenceImage, png []byte) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Upload(ctx, ref.StorageKey(), bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("seq", ref.Seq).
			Error("Failed to store reference image")
	}
}

// discardReference undoes a reference created by a registration that then
// failed, unless another scope has registered it in the meantime.
func (s *RegistryService) discardReference(ctx context.Context, ref *domain.ReferenceImage) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldContentID: ref.ContentID,
		"seq":                 ref.Seq,
	})

	deleted, err := s.store.DeleteReferenceIfUnregistered(ctx, ref.ContentID)
	if err != nil {
		log.WithError(err).Error("Failed to discard unregistered reference image")
		return
	}
	if !deleted {
		return
	}
	if s.storage != nil {
		if err := s.storage.Delete(ctx, ref.StorageKey()); err != nil {
			log.WithError(err).Warn("Failed to delete stored reference image")
		}
	}
	log.Info("Discarded reference image after failed registration")
}

// Delete removes the image with sequence number seq from a scope. When no
// other scope references it, the reference row and stored PNG are removed.
// Returns domain.ErrNotFound, without changing state, if seq is unknown or
// not registered in the scope.
func (s *RegistryService) Delete(ctx context.Context, scopeID string, seq uint) (*domain.ReferenceImage, error) {
	ref, err := s.delete(ctx, scopeID, seq)
	metrics.RegistryOperations.WithLabelValues("delete", outcome(err)).Inc()
	return ref, err
}

func (s *RegistryService) delete(ctx context.Context, scopeID string, seq uint) (*domain.ReferenceImage, error) {
	ref, err := s.store.LookupBySequence(ctx, seq)
	if err != nil {
		return nil, err
	}

	orphaned, err := s.store.UnregisterInScope(ctx, scopeID, ref.ContentID)
	if err != nil {
		return nil, err
	}

	if orphaned && s.storage != nil {
		if err := s.storage.Delete(ctx, ref.StorageKey()); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("seq", ref.Seq).
				Warn("Failed to delete stored reference image")
		}
	}

	logger.With(logger.Fields{
		logger.FieldContentID: ref.ContentID,
		"seq":                 ref.Seq,
		"orphaned":            orphaned,
	}).Info(ctx, "Reference image removed from scope")
	return ref, nil
}

// List returns one page of the scope's images in registration order.
// Pages start at 1; smaller values are treated as 1.
func (s *RegistryService) List(ctx context.Context, scopeID string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	items, err := s.store.ListByScope(ctx, scopeID, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountByScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ReferenceImage{}
	}
	return &Page{Items: items, Page: page, PageSize: s.pageSize, Total: total}, nil
}

// OpenImage opens the stored PNG of reference seq. The caller closes it.
func (s *RegistryService) OpenImage(ctx context.Context, seq uint) (io.ReadCloser, error) {
	ref, err := s.store.LookupBySequence(ctx, seq)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, fmt.Errorf("image %d: %w", seq, domain.ErrNotFound)
	}
	return s.storage.Download(ctx, ref.StorageKey())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorKey(err)
}
