package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"pedidos-backend/internal/models"
)

// MaxImages is the upper bound on photos per pedido. The upload middleware
// rejects larger batches before they reach the service.
const MaxImages = 5

type Repository interface {
	CreatePedido(ctx context.Context, pedido *models.Pedido) (*models.Pedido, error)
	GetPedido(ctx context.Context, id uuid.UUID) (*models.Pedido, error)
	ListPedidos(ctx context.Context) ([]models.Pedido, error)
	ListPedidosByUser(ctx context.Context, userID uuid.UUID) ([]models.Pedido, error)
	UpdatePedido(ctx context.Context, pedido *models.Pedido) (*models.Pedido, error)
	DeletePedido(ctx context.Context, id uuid.UUID) error
}

type ImageStore interface {
	Upload(localPath, folder string) (url, remoteID string, err error)
	Delete(remoteID string) error
}

type Service struct {
	repo   Repository
	store  ImageStore
	folder string
}

func New(repo Repository, store ImageStore, folder string) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		folder: folder,
	}
}

// Create validates the submission, uploads every file to the image store and
// persists the new pedido. If any upload fails, every image already uploaded
// in this call is deleted before the error is returned, so a partially
// uploaded pedido is never persisted.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, description string, quantity, timeEstimate int, filePaths []string) (*models.Pedido, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if err := validateFields(description, quantity, timeEstimate); err != nil {
		return nil, err
	}
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", ErrValidation)
	}
	if len(filePaths) > MaxImages {
		return nil, fmt.Errorf("%w: at most %d images are allowed", ErrValidation, MaxImages)
	}

	images, err := s.uploadAll(filePaths)
	if err != nil {
		return nil, err
	}

	pedido := &models.Pedido{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		Quantity:    quantity,
		Time:        timeEstimate,
		Images:      images,
	}

	created, err := s.repo.CreatePedido(ctx, pedido)
	if err != nil {
		s.deleteImages(images)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return created, nil
}

// List returns every pedido, newest first.
func (s *Service) List(ctx context.Context) ([]models.Pedido, error) {
	pedidos, err := s.repo.ListPedidos(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return pedidos, nil
}

// ListByOwner returns the caller's pedidos, newest first.
func (s *Service) ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.Pedido, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	pedidos, err := s.repo.ListPedidosByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return pedidos, nil
}

// Get looks a pedido up by its raw identifier.
func (s *Service) Get(ctx context.Context, id string) (*models.Pedido, error) {
	return s.lookup(ctx, id)
}

// Update replaces the scalar fields and, when filePaths is non-empty, the
// whole image set: the previously stored images are deleted best-effort,
// then the new files are uploaded with the same rollback guarantee as
// Create. Without files the image set is left untouched.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, id, description string, quantity, timeEstimate int, filePaths []string) (*models.Pedido, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if err := validateFields(description, quantity, timeEstimate); err != nil {
		return nil, err
	}
	if len(filePaths) > MaxImages {
		return nil, fmt.Errorf("%w: at most %d images are allowed", ErrValidation, MaxImages)
	}

	existing, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, ErrForbidden
	}

	images := existing.Images
	if len(filePaths) > 0 {
		s.deleteImages(existing.Images)
		images, err = s.uploadAll(filePaths)
		if err != nil {
			return nil, err
		}
	}

	existing.Description = description
	existing.Quantity = quantity
	existing.Time = timeEstimate
	existing.Images = images

	updated, err := s.repo.UpdatePedido(ctx, existing)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted concurrently between lookup and update.
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return updated, nil
}

// Delete releases every image referenced by the pedido from the image store
// (best-effort, failures are logged) and removes the document.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	existing, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrForbidden
	}

	s.deleteImages(existing.Images)

	err = s.repo.DeletePedido(ctx, existing.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return nil
}

func (s *Service) lookup(ctx context.Context, id string) (*models.Pedido, error) {
	pedidoID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	pedido, err := s.repo.GetPedido(ctx, pedidoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return pedido, nil
}

// uploadAll fans the uploads out over a bounded worker pool and waits for
// joint completion. Each temp file is removed right after its own upload
// succeeds. On any failure the images that did make it are deleted again.
func (s *Service) uploadAll(filePaths []string) ([]models.Image, error) {
	images := make([]models.Image, len(filePaths))
	uploaded := make([]bool, len(filePaths))

	var g errgroup.Group
	g.SetLimit(MaxImages)
	for i, path := range filePaths {
		g.Go(func() error {
			url, remoteID, err := s.store.Upload(path, s.folder)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrImageStore, err)
			}
			images[i] = models.Image{URL: url, RemoteID: remoteID}
			uploaded[i] = true
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("failed to remove temp file %s: %v", path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for i := range images {
			if !uploaded[i] {
				continue
			}
			if derr := s.store.Delete(images[i].RemoteID); derr != nil {
				log.Printf("rollback: failed to delete image %s: %v", images[i].RemoteID, derr)
			}
		}
		return nil, err
	}

	return images, nil
}

// deleteImages removes stored images best-effort. A failed deletion is
// logged and never aborts the owning mutation.
func (s *Service) deleteImages(images []models.Image) {
	for _, image := range images {
		if err := s.store.Delete(image.RemoteID); err != nil {
			log.Printf("failed to delete image %s: %v", image.RemoteID, err)
		}
	}
}

func validateFields(description string, quantity, timeEstimate int) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive number", ErrValidation)
	}
	if timeEstimate <= 0 {
		return fmt.Errorf("%w: time must be a positive number", ErrValidation)
	}
	return nil
}
