package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	apperrors "dataflux-query-api/pkg/errors"
)

// MetadataRepository 资产与片段元数据仓储
type MetadataRepository struct {
	client *Client
}

// NewMetadataRepository 创建元数据仓储
func NewMetadataRepository(client *Client) *MetadataRepository {
	return &MetadataRepository{client: client}
}

var _ repository.MetadataStore = (*MetadataRepository)(nil)

// SearchAssets 文件名模糊匹配或标签命中，叠加过滤条件，按 created_at 降序
func (r *MetadataRepository) SearchAssets(ctx context.Context, filter repository.MetadataFilter) ([]*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.SearchAssets")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&AssetModel{})

	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("(filename ILIKE ? OR ? = ANY(tags))", "%"+escapeLike(q)+"%", strings.ToLower(q))
	}
	if len(filter.MediaTypes) > 0 {
		conds := make([]string, 0, len(filter.MediaTypes))
		args := make([]any, 0, len(filter.MediaTypes))
		for _, mt := range filter.MediaTypes {
			conds = append(conds, "mime_type LIKE ?")
			args = append(args, escapeLike(mt)+"/%")
		}
		query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if filter.CollectionID != "" {
		query = query.Where("collection_id = ?", filter.CollectionID)
	}
	if filter.ProcessingStatus != "" {
		query = query.Where("processing_status = ?", string(filter.ProcessingStatus))
	}
	if len(filter.Tags) > 0 {
		query = query.Where("tags && ?", pq.Array(filter.Tags))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var models []*AssetModel
	if err := query.Order("created_at DESC, id ASC").Limit(limit).Find(&models).Error; err != nil {
		span.RecordError(err)
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to search assets: %w", err))
	}

	assets := make([]*entity.Asset, 0, len(models))
	for _, m := range models {
		assets = append(assets, m.toEntity())
	}
	return assets, nil
}

// GetAsset 根据 asset_id 获取资产
func (r *MetadataRepository) GetAsset(ctx context.Context, assetID string) (*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.GetAsset")
	defer span.End()

	var m AssetModel
	if err := getDB(ctx, r.client.db).First(&m, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to get asset: %w", err))
	}
	return m.toEntity(), nil
}

// GetSegment 根据 segment_id 获取片段
func (r *MetadataRepository) GetSegment(ctx context.Context, segmentID string) (*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.GetSegment")
	defer span.End()

	var m SegmentModel
	if err := getDB(ctx, r.client.db).First(&m, "id = ?", segmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to get segment: %w", err))
	}
	return m.toEntity(), nil
}

// CountAssets 资产总数
func (r *MetadataRepository) CountAssets(ctx context.Context) (int64, error) {
	return r.count(ctx, &AssetModel{})
}

// CountSegments 片段总数
func (r *MetadataRepository) CountSegments(ctx context.Context) (int64, error) {
	return r.count(ctx, &SegmentModel{})
}

func (r *MetadataRepository) count(ctx context.Context, model any) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.Count")
	defer span.End()

	var n int64
	if err := getDB(ctx, r.client.db).Model(model).Count(&n).Error; err != nil {
		span.RecordError(err)
		return 0, apperrors.BackendUnavailable(backendName, fmt.Errorf("failed to count: %w", err))
	}
	return n, nil
}

// UpsertAsset 写入或覆盖资产（供同步任务与初始化使用）
func (r *MetadataRepository) UpsertAsset(ctx context.Context, asset *entity.Asset) error {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.UpsertAsset")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(assetModelFrom(asset)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert asset: %w", err)
	}
	return nil
}

// UpsertSegment 写入或覆盖片段
func (r *MetadataRepository) UpsertSegment(ctx context.Context, segment *entity.Segment) error {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.UpsertSegment")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(segmentModelFrom(segment)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert segment: %w", err)
	}
	return nil
}

// DeleteAsset 删除资产及其片段
func (r *MetadataRepository) DeleteAsset(ctx context.Context, assetID string) error {
	ctx, span := tracer.Start(ctx, "postgres.MetadataRepository.DeleteAsset")
	defer span.End()

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SegmentModel{}, "asset_id = ?", assetID).Error; err != nil {
			return err
		}
		return tx.Delete(&AssetModel{}, "id = ?", assetID).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (r *MetadataRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// Migrate 建表（仅开发环境与初始化使用）
func (r *MetadataRepository) Migrate(ctx context.Context) error {
	if err := r.client.db.WithContext(ctx).AutoMigrate(&AssetModel{}, &SegmentModel{}); err != nil {
		return fmt.Errorf("failed to migrate metadata tables: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
