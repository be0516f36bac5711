package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/access"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/payloads"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/principals"
	"github.com/google/uuid"
)

// PutRequest is one upload. Nil optional fields inherit from the previous
// version, or take defaults for a first version.
type PutRequest struct {
	OwnerID     string
	Name        string
	Payload     []byte
	Title       *string
	Description *string
	Visibility  *models.Visibility
}

// ObjectService stores encrypted, versioned objects. Payloads are kept
// inline in the object record unless a payload store is configured.
type ObjectService struct {
	objects    objects.Repository
	principals principals.Repository
	cipher     *cryptox.CipherBox
	payloads   payloads.Store
	auditor    Auditor
	logger     logging.Logger

	locks *keyedMutex
	now   func() time.Time
}

// NewObjectService wires the service. store may be nil.
func NewObjectService(objs objects.Repository, prs principals.Repository, cipher *cryptox.CipherBox,
	store payloads.Store, auditor Auditor, logger logging.Logger) *ObjectService {
	return &ObjectService{
		objects:    objs,
		principals: prs,
		cipher:     cipher,
		payloads:   store,
		auditor:    auditor,
		logger:     logger.With("module", "objects"),
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

func repoErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%w: %v", common.ErrorInternal, err)
}

// Put stores req.Payload either as version 1 of a new object or as the next
// version of the owner's object with the same name.
func (s *ObjectService) Put(ctx context.Context, req PutRequest) (*models.StoredObject, error) {
	if req.OwnerID == "" {
		return nil, common.ErrorUnauthorized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: object name is required", common.ErrorValidation)
	}

	blob, err := s.cipher.Encrypt(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt: %v", common.ErrorInternal, err)
	}

	now := s.now().UTC()
	d := &models.Draft{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		Name:        name,
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
		Size:        int64(len(blob)),
		CreatedAt:   now,
	}

	if s.payloads != nil {
		d.StorageKey = payloads.Key(d.ID, now)
		if err := s.payloads.Put(ctx, d.StorageKey, blob); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	} else {
		d.Data = blob
	}

	unlock := s.locks.Lock(req.OwnerID + "\x00" + name)
	created, previous, err := s.objects.AppendVersion(ctx, d)
	unlock()
	if err != nil {
		s.dropPayload(ctx, d.StorageKey)
		return nil, repoErr(err)
	}

	// the version is already committed
	if err := s.principals.AddOwnedObject(ctx, req.OwnerID, created.ID); err != nil {
		s.logger.Error(ctx, "owned set not updated", "principal_id", req.OwnerID, "object_id", created.ID, "error", err)
	}

	action := models.ActionUpload
	if previous != nil {
		action = models.ActionUploadNewVersion
	}
	s.auditor.Append(ctx, req.OwnerID, action, created.ID)
	s.logger.Info(ctx, "object stored", "object_id", created.ID, "version", created.Version)

	created.Data = nil
	return created, nil
}

func (s *ObjectService) dropPayload(ctx context.Context, key string) {
	if key == "" || s.payloads == nil {
		return
	}
	if err := s.payloads.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "payload cleanup failed", "storage_key", key, "error", err)
	}
}

func (s *ObjectService) ListPublic(ctx context.Context) ([]*models.StoredObject, error) {
	list, err := s.objects.ListPublic(ctx)
	if err != nil {
		return nil, repoErr(err)
	}
	return list, nil
}

func (s *ObjectService) ListOwned(ctx context.Context, principalID string) ([]*models.StoredObject, error) {
	if principalID == "" {
		return nil, common.ErrorUnauthorized
	}
	list, err := s.objects.ListByOwner(ctx, principalID)
	if err != nil {
		return nil, repoErr(err)
	}
	return list, nil
}

// ListDownloaded returns the objects in the principal's downloaded set that
// still exist.
func (s *ObjectService) ListDownloaded(ctx context.Context, principalID string) ([]*models.StoredObject, error) {
	if principalID == "" {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrPrincipalNotFound
		}
		return nil, repoErr(err)
	}
	list, err := s.objects.ListByIDs(ctx, p.DownloadedObjectIDs)
	if err != nil {
		return nil, repoErr(err)
	}
	return list, nil
}

// Get decrypts an object for requesterID ("" when anonymous). Private
// retrievals are audited; public ones are counted and remembered in the
// requester's downloaded set.
func (s *ObjectService) Get(ctx context.Context, objectID, requesterID string) (*models.StoredObject, []byte, error) {
	o, err := s.objects.FindByID(ctx, objectID)
	if err != nil {
		return nil, nil, repoErr(err)
	}

	if err := access.AuthorizeRead(o, requesterID).Err(); err != nil {
		return nil, nil, err
	}

	blob := o.Data
	if o.StorageKey != "" {
		if s.payloads == nil {
			return nil, nil, fmt.Errorf("%w: object %s is in the payload store, none configured", common.ErrorInternal, o.ID)
		}
		if blob, err = s.payloads.Get(ctx, o.StorageKey); err != nil {
			return nil, nil, repoErr(err)
		}
	}

	plaintext, err := s.cipher.Decrypt(blob)
	if err != nil {
		s.logger.Error(ctx, "stored payload does not decrypt", "object_id", o.ID, "error", err)
		return nil, nil, err
	}

	if o.IsPublic() {
		if requesterID != "" {
			if _, err := s.principals.AddDownloadedObject(ctx, requesterID, o.ID); err != nil {
				return nil, nil, repoErr(err)
			}
		}
		count, err := s.objects.IncrementDownloadCount(ctx, o.ID)
		if err != nil {
			return nil, nil, repoErr(err)
		}
		o.DownloadCount = count
	} else {
		s.auditor.Append(ctx, requesterID, models.ActionDownloadPrivate(o.Name), o.ID)
	}

	o.Data = nil
	return o, plaintext, nil
}

// Update overwrites the supplied metadata fields. Only the owner may update.
func (s *ObjectService) Update(ctx context.Context, objectID, requesterID string, patch models.ObjectPatch) (*models.StoredObject, error) {
	o, err := s.objects.FindByID(ctx, objectID)
	if err != nil {
		return nil, repoErr(err)
	}
	if err := access.AuthorizeWrite(o, requesterID).Err(); err != nil {
		return nil, err
	}
	if patch.Visibility != nil && *patch.Visibility != "" {
		if _, err := models.ParseVisibility(string(*patch.Visibility)); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
	}

	updated, err := s.objects.Update(ctx, objectID, patch)
	if err != nil {
		return nil, repoErr(err)
	}

	s.auditor.Append(ctx, requesterID, models.ActionUpdate, objectID)
	return updated, nil
}

// Delete removes one version. Other versions keep their lineage references
// to it.
func (s *ObjectService) Delete(ctx context.Context, objectID, requesterID string) error {
	o, err := s.objects.FindByID(ctx, objectID)
	if err != nil {
		return repoErr(err)
	}
	if err := access.AuthorizeWrite(o, requesterID).Err(); err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, objectID); err != nil {
		return repoErr(err)
	}
	s.dropPayload(ctx, o.StorageKey)

	if err := s.principals.RemoveOwnedObject(ctx, o.OwnerID, objectID); err != nil {
		s.logger.Error(ctx, "owned set not updated", "principal_id", o.OwnerID, "object_id", objectID, "error", err)
	}

	s.auditor.Append(ctx, requesterID, models.ActionDelete, objectID)
	s.logger.Info(ctx, "object deleted", "object_id", objectID)
	return nil
}
