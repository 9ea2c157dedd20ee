package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/infra/database/models"
	"github.com/totegamma/starnet/internal/usecase"
)

type HolonRepository struct {
	db *gorm.DB
}

func NewHolonRepository(db *gorm.DB) *HolonRepository {
	return &HolonRepository{db: db}
}

func toModel(h domain.Holon) models.HolonVersion {
	meta := datatypes.JSONMap{}
	for k, v := range h.MetaData {
		meta[k] = v
	}
	return models.HolonVersion{
		ID:            h.ID,
		Version:       h.Version,
		Family:        h.Family,
		OwnerID:       h.OwnerID,
		Name:          h.Name,
		Description:   h.Description,
		Subtype:       h.Subtype,
		Status:        string(h.Status),
		SourcePath:    h.SourcePath,
		PublishedPath: h.PublishedPath,
		InstalledPath: h.InstalledPath,
		LaunchTarget:  h.LaunchTarget,
		Digest:        h.Digest,
		Registered:    h.Registered,
		MetaData:      meta,
		PublishedOn:   h.PublishedOn,
		PublishedBy:   h.PublishedBy,
		CDate:         h.CreatedAt,
		MDate:         h.UpdatedAt,
	}
}

func fromModel(m models.HolonVersion) domain.Holon {
	meta := make(map[string]string, len(m.MetaData))
	for k, v := range m.MetaData {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	return domain.Holon{
		ID:            m.ID,
		Version:       m.Version,
		Family:        m.Family,
		Name:          m.Name,
		Description:   m.Description,
		Subtype:       m.Subtype,
		OwnerID:       m.OwnerID,
		Status:        domain.Status(m.Status),
		SourcePath:    m.SourcePath,
		PublishedPath: m.PublishedPath,
		InstalledPath: m.InstalledPath,
		LaunchTarget:  m.LaunchTarget,
		Digest:        m.Digest,
		Registered:    m.Registered,
		MetaData:      meta,
		PublishedOn:   m.PublishedOn,
		PublishedBy:   m.PublishedBy,
		CreatedAt:     m.CDate,
		UpdatedAt:     m.MDate,
	}
}

func (r *HolonRepository) Insert(ctx context.Context, h domain.Holon) error {
	m := toModel(h)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.Conflict("holon %s version %d already exists", h.ID, h.Version)
	}
	return nil
}

func (r *HolonRepository) Get(ctx context.Context, id string, version int) (domain.Holon, error) {
	var m models.HolonVersion
	tx := r.db.WithContext(ctx).Where("id = ?", id)
	if version == domain.LatestVersion {
		tx = tx.Order("version desc")
	} else {
		tx = tx.Where("version = ?", version)
	}
	err := tx.Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Holon{}, domain.NotFoundError{Resource: "holon"}
		}
		return domain.Holon{}, err
	}
	return fromModel(m), nil
}

func (r *HolonRepository) Versions(ctx context.Context, id string) ([]domain.Holon, error) {
	var rows []models.HolonVersion
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Order("version asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows), nil
}

func (r *HolonRepository) List(ctx context.Context, q domain.HolonQuery) ([]domain.Holon, error) {
	tx := r.db.WithContext(ctx).Model(&models.HolonVersion{})
	if !q.AllVersions {
		latest := r.db.Model(&models.HolonVersion{}).
			Select("id, MAX(version)").
			Group("id")
		tx = tx.Where("(id, version) IN (?)", latest)
	}
	if q.Family != "" {
		tx = tx.Where("family = ?", q.Family)
	}
	if q.OwnerID != "" {
		tx = tx.Where("owner_id = ?", q.OwnerID)
	}
	if q.Subtype != "" {
		tx = tx.Where("subtype = ?", q.Subtype)
	}

	var rows []models.HolonVersion
	err := tx.Order("id asc").Order("version asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromModels(rows), nil
}

func (r *HolonRepository) Save(ctx context.Context, h domain.Holon) error {
	m := toModel(h)
	result := r.db.WithContext(ctx).
		Model(&models.HolonVersion{}).
		Where("id = ? AND version = ?", h.ID, h.Version).
		Updates(map[string]any{
			"status":         m.Status,
			"source_path":    m.SourcePath,
			"published_path": m.PublishedPath,
			"installed_path": m.InstalledPath,
			"launch_target":  m.LaunchTarget,
			"digest":         m.Digest,
			"registered":     m.Registered,
			"meta_data":      m.MetaData,
			"published_on":   m.PublishedOn,
			"published_by":   m.PublishedBy,
			"m_date":         m.MDate,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "holon"}
	}
	return nil
}

func (r *HolonRepository) Delete(ctx context.Context, id string, version int) (int64, error) {
	tx := r.db.WithContext(ctx).Where("id = ?", id)
	if version != domain.LatestVersion {
		tx = tx.Where("version = ?", version)
	}
	result := tx.Delete(&models.HolonVersion{})
	return result.RowsAffected, result.Error
}

func fromModels(rows []models.HolonVersion) []domain.Holon {
	list := make([]domain.Holon, 0, len(rows))
	for _, m := range rows {
		list = append(list, fromModel(m))
	}
	return list
}

var _ usecase.HolonRepository = (*HolonRepository)(nil)
