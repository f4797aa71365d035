package docs

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvbuilder-backend/internal/queue"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
)

// Service contains business logic for documents. It is the persistence
// collaborator the editor's autosave talks to.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
	// Cleanup, when set, receives storage keys of photo objects that were
	// replaced or removed. Without it, deletion runs inline best-effort.
	Cleanup queue.Client
	// StoreBaseURL lets the service map stored photo URLs back to storage
	// keys when scheduling cleanup.
	StoreBaseURL string
}

// SaveResult is what an upsert hands back to the caller: the persisted
// identity plus server-assigned timestamps and the resolved photo URL.
type SaveResult struct {
	ID        string
	PhotoURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Upsert persists a document snapshot. An empty doc.ID creates a new record
// with a server-assigned identifier; a present ID updates in place. The photo
// change is the tri-state contract: PhotoUnchanged leaves the stored URL
// alone, PhotoReplace stores the new binary and swaps the URL, PhotoRemove
// clears it. All-blank section records are pruned before hitting the repo.
func (s *Service) Upsert(ctx context.Context, userID string, doc Document, photo PhotoChange) (SaveResult, error) {
	if userID == "" {
		return SaveResult{}, ErrInvalidInput
	}
	if !ValidKind(doc.Kind) {
		return SaveResult{}, ErrInvalidInput
	}
	if strings.TrimSpace(doc.Title) == "" {
		// first autosave can land before the details step is filled in
		doc.Title = defaultTitle(doc.Kind)
	}

	doc.UserID = userID
	doc = doc.Pruned()
	now := time.Now().UTC()

	creating := doc.ID == ""
	var existing Document
	if !creating {
		var err error
		existing, err = s.Repo.GetByID(ctx, userID, doc.ID)
		if err != nil {
			return SaveResult{}, err
		}
		doc.CreatedAt = existing.CreatedAt
		doc.PhotoURL = existing.PhotoURL
	}

	switch photo.Op {
	case PhotoUnchanged:
		// stored URL carries over
	case PhotoReplace:
		if len(photo.Upload) == 0 {
			return SaveResult{}, ErrInvalidInput
		}
		name := photo.Meta.Name
		if name == "" {
			name = "photo"
		}
		key, _, _, err := s.Store.Save(ctx, userID, name, bytes.NewReader(photo.Upload))
		if err != nil {
			return SaveResult{}, err
		}
		if doc.PhotoURL != "" {
			s.scheduleCleanup(ctx, doc.PhotoURL)
		}
		doc.PhotoURL = s.Store.URL(key)
	case PhotoRemove:
		if doc.PhotoURL != "" {
			s.scheduleCleanup(ctx, doc.PhotoURL)
		}
		doc.PhotoURL = ""
	default:
		return SaveResult{}, ErrInvalidInput
	}

	doc.UpdatedAt = now
	if creating {
		doc.ID = uuid.NewString()
		doc.CreatedAt = now
		if err := s.Repo.Create(ctx, doc); err != nil {
			return SaveResult{}, err
		}
	} else {
		if err := s.Repo.Update(ctx, doc); err != nil {
			return SaveResult{}, err
		}
	}

	return SaveResult{
		ID:        doc.ID,
		PhotoURL:  doc.PhotoURL,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Get returns a document the user owns.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the user's documents, most recently edited first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Count returns how many documents the user owns.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidInput
	}
	return s.Repo.CountByUser(ctx, userID)
}

// Delete removes a document and schedules its photo object for cleanup.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	if userID == "" || documentID == "" {
		return ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, documentID); err != nil {
		return err
	}
	if doc.PhotoURL != "" {
		s.scheduleCleanup(ctx, doc.PhotoURL)
	}
	return nil
}

func (s *Service) scheduleCleanup(ctx context.Context, photoURL string) {
	key := object.KeyFromURL(s.StoreBaseURL, photoURL)
	if key == "" {
		telemetry.Error("photo.cleanup.unmapped", map[string]any{"url": photoURL})
		return
	}
	if s.Cleanup != nil {
		msg := queue.Message{
			StorageKey: key,
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := s.Cleanup.Send(ctx, msg); err != nil {
			telemetry.Error("photo.cleanup.enqueue_failed", map[string]any{"key": key, "error": err.Error()})
		}
		return
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Error("photo.cleanup.delete_failed", map[string]any{"key": key, "error": err.Error()})
	}
}
