// Package menuimage registers menu images and keeps their metadata.
package menuimage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/dberr"
	"menuprice/pkg/imagestore"
	"menuprice/pkg/ocr"
	"menuprice/pkg/region"
)

// ErrNotFound is region.ErrImageNotFound so both packages report the same reason.
var ErrNotFound = region.ErrImageNotFound

var errExists = errors.New("menu image already registered")

type Image struct {
	ID                uuid.UUID `json:"id"`
	OriginalImageURL  string    `json:"original_image_url"`
	ProcessedImageURL *string   `json:"processed_image_url"`
	ContentType       string    `json:"content_type"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	UploadedBy        string    `json:"uploaded_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Repo interface {
	Create(ctx context.Context, img *Image) error
	Get(ctx context.Context, id uuid.UUID) (Image, error)
	GetByURL(ctx context.Context, url string) (Image, error)
	SetProcessedURL(ctx context.Context, id uuid.UUID, url string) (Image, error)
	// Bounds returns the pixel size of the image; it satisfies region.BoundsFunc.
	Bounds(ctx context.Context, id uuid.UUID) (int, int, error)
}

// Register records an image whose bytes live at ref. Registering the same
// ref twice returns the existing record.
func Register(ctx context.Context, repo Repo, ref string, data []byte, uploadedBy string) (Image, error) {
	if existing, err := repo.GetByURL(ctx, ref); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Image{}, err
	}
	ct, err := imagestore.DetectImageType(data)
	if err != nil {
		return Image{}, err
	}
	decoded, err := ocr.Decode(ref, data)
	if err != nil {
		return Image{}, err
	}
	img := Image{
		ID:               uuid.New(),
		OriginalImageURL: ref,
		ContentType:      ct,
		Width:            decoded.Width,
		Height:           decoded.Height,
		UploadedBy:       uploadedBy,
	}
	if err := repo.Create(ctx, &img); err != nil {
		if errors.Is(err, errExists) {
			return repo.GetByURL(ctx, ref)
		}
		return Image{}, err
	}
	return img, nil
}

// GormRepo stores images in the menu_images table.
type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func fromModel(m models.MenuImage) Image {
	return Image{
		ID:                m.ID,
		OriginalImageURL:  m.OriginalImageURL,
		ProcessedImageURL: m.ProcessedImageURL,
		ContentType:       m.ContentType,
		Width:             m.Width,
		Height:            m.Height,
		UploadedBy:        m.UploadedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func (r *GormRepo) Create(ctx context.Context, img *Image) error {
	m := models.MenuImage{
		ID:                img.ID,
		OriginalImageURL:  img.OriginalImageURL,
		ProcessedImageURL: img.ProcessedImageURL,
		ContentType:       img.ContentType,
		Width:             img.Width,
		Height:            img.Height,
		UploadedBy:        img.UploadedBy,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return errExists
		}
		return err
	}
	*img = fromModel(m)
	return nil
}

func (r *GormRepo) first(ctx context.Context, query string, arg any) (Image, error) {
	var m models.MenuImage
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if dberr.IsNotFound(err) {
			return Image{}, ErrNotFound
		}
		return Image{}, err
	}
	return fromModel(m), nil
}

func (r *GormRepo) Get(ctx context.Context, id uuid.UUID) (Image, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormRepo) GetByURL(ctx context.Context, url string) (Image, error) {
	return r.first(ctx, "original_image_url = ?", url)
}

func (r *GormRepo) SetProcessedURL(ctx context.Context, id uuid.UUID, url string) (Image, error) {
	res := r.db.WithContext(ctx).Model(&models.MenuImage{}).Where("id = ?", id).Update("processed_image_url", url)
	if res.Error != nil {
		return Image{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Image{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *GormRepo) Bounds(ctx context.Context, id uuid.UUID) (int, int, error) {
	img, err := r.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return img.Width, img.Height, nil
}

// MemoryRepo is an in-process Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Image
	byURL  map[string]uuid.UUID
	nowFn  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[uuid.UUID]*Image{}, byURL: map[string]uuid.UUID{}, nowFn: time.Now}
}

func (r *MemoryRepo) Create(_ context.Context, img *Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byURL[img.OriginalImageURL]; ok {
		return fmt.Errorf("%w: %s", errExists, img.OriginalImageURL)
	}
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	now := r.nowFn()
	img.CreatedAt, img.UpdatedAt = now, now
	cp := *img
	r.byID[img.ID] = &cp
	r.byURL[img.OriginalImageURL] = img.ID
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id uuid.UUID) (Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.byID[id]
	if !ok {
		return Image{}, ErrNotFound
	}
	return *img, nil
}

func (r *MemoryRepo) GetByURL(ctx context.Context, url string) (Image, error) {
	r.mu.RLock()
	id, ok := r.byURL[url]
	r.mu.RUnlock()
	if !ok {
		return Image{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepo) SetProcessedURL(_ context.Context, id uuid.UUID, url string) (Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.byID[id]
	if !ok {
		return Image{}, ErrNotFound
	}
	img.ProcessedImageURL = &url
	img.UpdatedAt = r.nowFn()
	return *img, nil
}

func (r *MemoryRepo) Bounds(ctx context.Context, id uuid.UUID) (int, int, error) {
	img, err := r.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return img.Width, img.Height, nil
}
