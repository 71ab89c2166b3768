// Package ingest 将写侧事件同步到图库、向量库与元数据库
package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	"dataflux-query-api/internal/infrastructure/messaging"
	apperrors "dataflux-query-api/pkg/errors"
	"dataflux-query-api/pkg/logger"
	"dataflux-query-api/pkg/metrics"
)

var tracer = otel.Tracer("ingest")

// MetadataWriter 元数据库写入能力，由 postgres.MetadataRepository 实现
type MetadataWriter interface {
	UpsertAsset(ctx context.Context, asset *entity.Asset) error
	UpsertSegment(ctx context.Context, segment *entity.Segment) error
	DeleteAsset(ctx context.Context, assetID string) error
}

// HandlerRegistrar 可注册消息处理器的消费者
type HandlerRegistrar interface {
	RegisterHandler(msgType string, handler messaging.MessageHandler)
}

// Applier 事件应用器
//
// 创建类操作不做幂等处理，重复投递可能产生重复节点。
type Applier struct {
	graph       repository.GraphStore
	vector      repository.VectorStore
	metadata    MetadataWriter
	vectorClass string
}

// NewApplier 创建事件应用器，metadata 可为 nil
func NewApplier(graph repository.GraphStore, vector repository.VectorStore, metadata MetadataWriter, vectorClass string) *Applier {
	return &Applier{
		graph:       graph,
		vector:      vector,
		metadata:    metadata,
		vectorClass: vectorClass,
	}
}

// Register 注册全部事件处理器
func (a *Applier) Register(r HandlerRegistrar) {
	r.RegisterHandler(messaging.EventAssetIndexed, a.instrument(messaging.EventAssetIndexed, a.applyAssetIndexed))
	r.RegisterHandler(messaging.EventSegmentDetected, a.instrument(messaging.EventSegmentDetected, a.applySegmentDetected))
	r.RegisterHandler(messaging.EventSimilarityComputed, a.instrument(messaging.EventSimilarityComputed, a.applySimilarityComputed))
	r.RegisterHandler(messaging.EventAssetDeleted, a.instrument(messaging.EventAssetDeleted, a.applyAssetDeleted))
}

func (a *Applier) instrument(eventType string, fn messaging.MessageHandler) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		ctx, span := tracer.Start(ctx, "ingest."+eventType)
		defer span.End()
		span.SetAttributes(attribute.String("message.id", msg.ID))

		if err := fn(ctx, msg); err != nil {
			span.RecordError(err)
			metrics.GraphSyncTotal.WithLabelValues(eventType, "failed").Inc()
			return err
		}
		metrics.GraphSyncTotal.WithLabelValues(eventType, "applied").Inc()
		return nil
	}
}

func (a *Applier) applyAssetIndexed(ctx context.Context, msg *messaging.Message) error {
	var ev AssetIndexed
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return apperrors.Validation("invalid %s payload: %v", msg.Type, err)
	}
	asset := ev.toAsset()
	if err := asset.Validate(); err != nil {
		return apperrors.Validation("%v", err)
	}
	ctx = logger.WithContext(ctx, logger.AssetIDKey, asset.AssetID)

	if a.metadata != nil {
		if err := a.metadata.UpsertAsset(ctx, asset); err != nil {
			return fmt.Errorf("upsert asset metadata: %w", err)
		}
	}
	if err := a.graph.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("create asset node: %w", err)
	}
	if len(asset.Vector) > 0 && a.vector != nil {
		if _, err := a.vector.CreateObject(ctx, a.vectorClass, asset.VectorProperties(), asset.Vector); err != nil {
			return fmt.Errorf("create vector object: %w", err)
		}
	}
	logger.Debug(ctx, "asset indexed", "has_vector", len(asset.Vector) > 0)
	return nil
}

func (a *Applier) applySegmentDetected(ctx context.Context, msg *messaging.Message) error {
	var ev SegmentDetected
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return apperrors.Validation("invalid %s payload: %v", msg.Type, err)
	}
	seg := ev.toSegment()
	if err := seg.Validate(); err != nil {
		return apperrors.Validation("%v", err)
	}
	ctx = logger.WithContext(ctx, logger.AssetIDKey, seg.AssetID)

	if a.metadata != nil {
		if err := a.metadata.UpsertSegment(ctx, seg); err != nil {
			return fmt.Errorf("upsert segment metadata: %w", err)
		}
	}
	if err := a.graph.CreateSegment(ctx, seg); err != nil {
		return fmt.Errorf("create segment node: %w", err)
	}
	if err := a.graph.LinkAssetSegment(ctx, seg.AssetID, seg.SegmentID, seg.SequenceNumber); err != nil {
		return fmt.Errorf("link asset segment: %w", err)
	}
	return nil
}

func (a *Applier) applySimilarityComputed(ctx context.Context, msg *messaging.Message) error {
	var ev SimilarityComputed
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return apperrors.Validation("invalid %s payload: %v", msg.Type, err)
	}
	if err := entity.ValidateSimilarityScore(ev.SimilarityScore); err != nil {
		return apperrors.Validation("%v", err)
	}
	if ev.SourceAssetID == "" || ev.TargetAssetID == "" {
		return apperrors.Validation("source_asset_id and target_asset_id are required")
	}
	ctx = logger.WithContext(ctx, logger.AssetIDKey, ev.SourceAssetID)

	if err := a.graph.LinkSimilarity(ctx, ev.SourceAssetID, ev.TargetAssetID, ev.SimilarityScore, ev.SimilarityType); err != nil {
		return fmt.Errorf("link similarity: %w", err)
	}
	if ev.Symmetric {
		if err := a.graph.LinkSimilarity(ctx, ev.TargetAssetID, ev.SourceAssetID, ev.SimilarityScore, ev.SimilarityType); err != nil {
			return fmt.Errorf("link reverse similarity: %w", err)
		}
	}
	return nil
}

func (a *Applier) applyAssetDeleted(ctx context.Context, msg *messaging.Message) error {
	var ev AssetDeleted
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return apperrors.Validation("invalid %s payload: %v", msg.Type, err)
	}
	if ev.AssetID == "" {
		return apperrors.Validation("asset_id is required")
	}
	ctx = logger.WithContext(ctx, logger.AssetIDKey, ev.AssetID)

	if a.vector != nil {
		err := a.vector.DeleteObject(ctx, ev.AssetID)
		if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return fmt.Errorf("delete vector object: %w", err)
		}
	}
	if a.metadata != nil {
		if err := a.metadata.DeleteAsset(ctx, ev.AssetID); err != nil {
			return fmt.Errorf("delete asset metadata: %w", err)
		}
	}
	return nil
}
