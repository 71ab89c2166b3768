// Package search 多后端检索编排：缓存、并发扇出、得分融合与分页
package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	"dataflux-query-api/internal/domain/repository"
	apperrors "dataflux-query-api/pkg/errors"
	"dataflux-query-api/pkg/logger"
	"dataflux-query-api/pkg/metrics"
)

var tracer = otel.Tracer("search")

// segmentFetchConcurrency 附带片段时的并发读取上限
const segmentFetchConcurrency = 8

// Orchestrator 检索编排器
type Orchestrator struct {
	vector   repository.VectorStore
	graph    repository.GraphStore
	metadata repository.MetadataStore
	cache    repository.ResultCache

	cfg      config.SearchConfig
	cacheCfg config.ResultCacheConfig
	breakers *breakers
	inflight singleflight.Group
}

// NewOrchestrator 创建编排器，cache 为 nil 时不使用结果缓存
func NewOrchestrator(
	vector repository.VectorStore,
	graph repository.GraphStore,
	metadata repository.MetadataStore,
	cache repository.ResultCache,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		vector:   vector,
		graph:    graph,
		metadata: metadata,
		cache:    cache,
		cfg:      cfg.Search,
		cacheCfg: cfg.Cache.Result,
		breakers: newBreakers(cfg.Search.Breaker),
	}
}

// Search 多后端检索
func (o *Orchestrator) Search(ctx context.Context, req *entity.SearchRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "search.Orchestrator.Search")
	defer span.End()

	n, err := normalizeSearch(req, &o.cfg)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kindSearch, "invalid").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("search.has_text", n.hasText()),
		attribute.Bool("search.has_vector", n.hasVector()),
		attribute.Int("search.limit", n.Limit),
		attribute.Int("search.offset", n.Offset),
	)

	return o.run(ctx, kindSearch, n, func(ctx context.Context) ([]byte, []entity.Source, error) {
		return o.computeSearch(ctx, n)
	})
}

// Similar 相似资产：图相似边与向量近邻融合
func (o *Orchestrator) Similar(ctx context.Context, req *entity.SimilarRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "search.Orchestrator.Similar")
	defer span.End()

	n, err := normalizeSimilar(req, &o.cfg)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kindSimilar, "invalid").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("asset_id", n.AssetID), attribute.Int("search.limit", n.Limit))

	return o.run(ctx, kindSimilar, n, func(ctx context.Context) ([]byte, []entity.Source, error) {
		return o.computeSimilar(ctx, n)
	})
}

type computeFunc func(ctx context.Context) ([]byte, []entity.Source, error)

type computed struct {
	body     []byte
	degraded []entity.Source
}

// run 缓存检查 -> 扇出合并 -> 写缓存
func (o *Orchestrator) run(ctx context.Context, kind string, keySource any, compute computeFunc) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	key, err := cacheKey(o.cacheCfg.KeyPrefix, kind, keySource)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to build cache key")
	}

	if body, ok := o.lookup(ctx, key); ok {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "hit").Inc()
		return &Result{Body: body, CacheHit: true}, nil
	}

	fill := func(ctx context.Context) (*computed, error) {
		body, degraded, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		// 降级结果不写缓存
		if len(degraded) == 0 {
			o.store(ctx, key, body)
		}
		return &computed{body: body, degraded: degraded}, nil
	}

	var out *computed
	if o.cfg.CoalesceMisses {
		// 合并进程内相同的未命中请求，共享计算不随单个调用方取消
		v, err, _ := o.inflight.Do(key, func() (any, error) {
			return fill(context.WithoutCancel(ctx))
		})
		if err != nil {
			o.countFailure(kind, err)
			return nil, err
		}
		out = v.(*computed)
	} else {
		out, err = fill(ctx)
		if err != nil {
			o.countFailure(kind, err)
			return nil, err
		}
	}

	outcome := "miss"
	if len(out.degraded) > 0 {
		outcome = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(kind, outcome).Inc()
	return &Result{Body: out.body, Degraded: out.degraded}, nil
}

func (o *Orchestrator) countFailure(kind string, err error) {
	outcome := "failed"
	if apperrors.IsCode(err, apperrors.CodeInvalidParam) {
		outcome = "invalid"
	}
	metrics.SearchRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// lookup 缓存读取，错误按未命中处理
func (o *Orchestrator) lookup(ctx context.Context, key string) ([]byte, bool) {
	if o.cache == nil || !o.cacheCfg.Enabled {
		return nil, false
	}
	body, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		logger.Warn(logger.WithBackend(ctx, "cache"), "result cache lookup failed", "error", err.Error())
		return nil, false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return body, true
}

func (o *Orchestrator) store(ctx context.Context, key string, body []byte) {
	if o.cache == nil || !o.cacheCfg.Enabled || o.cacheCfg.TTL <= 0 {
		return
	}
	if err := o.cache.Set(ctx, key, body, o.cacheCfg.TTL); err != nil {
		logger.Warn(logger.WithBackend(ctx, "cache"), "result cache store failed", "error", err.Error())
	}
}

func (o *Orchestrator) computeSearch(ctx context.Context, n *normalizedSearch) ([]byte, []entity.Source, error) {
	limit := backendLimit(n.window(), &o.cfg)

	sets, degraded, err := o.fanOut(ctx, o.searchBranches(n, limit))
	if err != nil {
		return nil, degraded, err
	}

	merged := merge(sets, o.cfg.Fusion.Weights)
	filtered := make([]*entity.SearchResult, 0, len(merged))
	for _, r := range merged {
		if n.matches(r) {
			filtered = append(filtered, r)
		}
	}
	metrics.SearchResultCount.WithLabelValues(kindSearch).Observe(float64(len(filtered)))

	results := page(filtered, n.Offset, n.Limit)
	if n.IncludeSegments && !o.attachSegments(ctx, results, n.ConfidenceMin) && !containsSource(degraded, entity.SourceGraph) {
		degraded = append(degraded, entity.SourceGraph)
		sortSources(degraded)
	}
	body, err := json.Marshal(&SearchResponse{
		Results: results,
		Total:   len(results),
		Limit:   n.Limit,
		Offset:  n.Offset,
	})
	if err != nil {
		return nil, degraded, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode search response")
	}
	return body, degraded, nil
}

func (o *Orchestrator) computeSimilar(ctx context.Context, n *normalizedSimilar) ([]byte, []entity.Source, error) {
	limit := backendLimit(n.Limit, &o.cfg)

	sets, degraded, err := o.fanOut(ctx, o.similarBranches(n, limit))
	if err != nil {
		return nil, degraded, err
	}

	merged := merge(sets, o.cfg.Fusion.Weights)
	filtered := make([]*entity.SearchResult, 0, len(merged))
	for _, r := range merged {
		if r.AssetID != n.AssetID && matchesMediaType(n.MediaTypes, r.MimeType) {
			filtered = append(filtered, r)
		}
	}
	metrics.SearchResultCount.WithLabelValues(kindSimilar).Observe(float64(len(filtered)))

	results := page(filtered, 0, n.Limit)
	body, err := json.Marshal(&SimilarResponse{SimilarAssets: results, Total: len(results)})
	if err != nil {
		return nil, degraded, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to encode similar response")
	}
	return body, degraded, nil
}

// branch 一次后端调用
type branch struct {
	source  entity.Source
	timeout time.Duration
	run     func(ctx context.Context) ([]*entity.SearchResult, error)
}

type branchOutcome struct {
	source  entity.Source
	results []*entity.SearchResult
	err     error
}

// fanOut 并发执行各分支，整体超时后使用已返回的结果
//
// 未返回与失败的分支计入 degraded；全部失败时返回 TotalFailure。
func (o *Orchestrator) fanOut(ctx context.Context, branches []branch) (map[entity.Source][]*entity.SearchResult, []entity.Source, error) {
	sets := make(map[entity.Source][]*entity.SearchResult, len(branches))
	if len(branches) == 0 {
		return sets, nil, nil
	}

	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	ch := make(chan branchOutcome, len(branches))
	pending := make(map[entity.Source]struct{}, len(branches))
	for _, b := range branches {
		pending[b.source] = struct{}{}
		go func(b branch) {
			ch <- o.call(ctx, b)
		}(b)
	}

	var degraded []entity.Source
	var errs []error
collect:
	for range branches {
		select {
		case out := <-ch:
			delete(pending, out.source)
			if out.err != nil {
				degraded = append(degraded, out.source)
				errs = append(errs, out.err)
				continue
			}
			sets[out.source] = out.results
		case <-ctx.Done():
			for src := range pending {
				degraded = append(degraded, src)
				errs = append(errs, fmt.Errorf("%s: %w", src, ctx.Err()))
				metrics.BackendCallsTotal.WithLabelValues(string(src), "timeout").Inc()
				logger.Warn(logger.WithBackend(ctx, string(src)), "backend did not answer before request deadline")
			}
			break collect
		}
	}
	sortSources(degraded)

	if len(sets) == 0 {
		return nil, degraded, apperrors.TotalFailure(stderrors.Join(errs...))
	}
	return sets, degraded, nil
}

// call 在单后端超时与熔断器内执行分支
func (o *Orchestrator) call(ctx context.Context, b branch) branchOutcome {
	ctx, span := tracer.Start(ctx, "search.branch."+string(b.source))
	defer span.End()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := o.breakers.execute(b.source, func() ([]*entity.SearchResult, error) {
		return b.run(ctx)
	})
	metrics.BackendCallDuration.WithLabelValues(string(b.source)).Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
		metrics.BackendCallsTotal.WithLabelValues(string(b.source), status).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(logger.WithBackend(ctx, string(b.source)), "backend excluded from merge",
			"status", status, "error", err.Error())
		return branchOutcome{source: b.source, err: err}
	}

	metrics.BackendCallsTotal.WithLabelValues(string(b.source), "success").Inc()
	span.SetAttributes(attribute.Int("results", len(results)))
	return branchOutcome{source: b.source, results: results}
}

func (o *Orchestrator) searchBranches(n *normalizedSearch, limit int) []branch {
	var branches []branch

	if o.vector != nil && (n.hasText() || n.hasVector()) {
		branches = append(branches, branch{
			source:  entity.SourceVector,
			timeout: o.cfg.Timeouts.Vector,
			run: func(ctx context.Context) ([]*entity.SearchResult, error) {
				switch {
				case n.hasText() && n.hasVector():
					return o.vector.HybridSearch(ctx, n.Query, n.Vector, limit)
				case n.hasVector():
					return o.vector.SearchSimilar(ctx, n.Vector, limit, n.CollectionID)
				default:
					return o.vector.TextSearch(ctx, n.Query, limit)
				}
			},
		})
	}

	if keywords := extractKeywords(n.Query, o.cfg.MaxKeywords); o.graph != nil && len(keywords) > 0 {
		branches = append(branches, branch{
			source:  entity.SourceGraph,
			timeout: o.cfg.Timeouts.Graph,
			run: func(ctx context.Context) ([]*entity.SearchResult, error) {
				return o.searchGraph(ctx, keywords, n.ConfidenceMin, limit)
			},
		})
	}

	if o.metadata != nil && (n.hasText() || n.hasFilters()) {
		branches = append(branches, branch{
			source:  entity.SourceMetadata,
			timeout: o.cfg.Timeouts.Metadata,
			run: func(ctx context.Context) ([]*entity.SearchResult, error) {
				assets, err := o.metadata.SearchAssets(ctx, repository.MetadataFilter{
					Query:            n.Query,
					MediaTypes:       n.MediaTypes,
					CollectionID:     n.CollectionID,
					ProcessingStatus: n.ProcessingStatus,
					Tags:             n.Tags,
					Limit:            limit,
				})
				if err != nil {
					return nil, err
				}
				results := make([]*entity.SearchResult, 0, len(assets))
				for _, a := range assets {
					results = append(results, entity.ResultFromAsset(a, 0, entity.ScoreRank))
				}
				return results, nil
			},
		})
	}
	return branches
}

// searchGraph 按关键词查找包含对象的片段，单个关键词失败不影响其余关键词
func (o *Orchestrator) searchGraph(ctx context.Context, keywords []string, minConfidence float64, limit int) ([]*entity.SearchResult, error) {
	var results []*entity.SearchResult
	var firstErr error
	succeeded := 0
	for _, kw := range keywords {
		hits, err := o.graph.FindObjectsInSegments(ctx, kw, limit)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded++
		for _, h := range hits {
			if h.ConfidenceScore < minConfidence {
				continue
			}
			results = append(results, &entity.SearchResult{
				AssetID:      h.AssetID,
				Score:        h.ConfidenceScore,
				ScoreKind:    entity.ScoreWeight,
				Filename:     h.Filename,
				MimeType:     h.MimeType,
				CollectionID: h.CollectionID,
				CreatedAt:    h.CreatedAt,
			})
		}
	}
	if succeeded == 0 && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (o *Orchestrator) similarBranches(n *normalizedSimilar, limit int) []branch {
	var branches []branch

	if o.graph != nil {
		branches = append(branches, branch{
			source:  entity.SourceGraph,
			timeout: o.cfg.Timeouts.Graph,
			run: func(ctx context.Context) ([]*entity.SearchResult, error) {
				edges, err := o.graph.FindSimilar(ctx, n.AssetID, n.Threshold, limit)
				if err != nil {
					return nil, err
				}
				results := make([]*entity.SearchResult, 0, len(edges))
				for _, e := range edges {
					results = append(results, &entity.SearchResult{
						AssetID:   e.TargetAssetID,
						Score:     e.SimilarityScore,
						ScoreKind: entity.ScoreWeight,
						Filename:  e.TargetFilename,
						MimeType:  e.TargetMimeType,
						CreatedAt: e.CreatedAt,
					})
				}
				return results, nil
			},
		})
	}

	if o.vector != nil {
		branches = append(branches, branch{
			source:  entity.SourceVector,
			timeout: o.cfg.Timeouts.Vector,
			run: func(ctx context.Context) ([]*entity.SearchResult, error) {
				asset, err := o.vector.GetObject(ctx, n.AssetID)
				if err != nil {
					if apperrors.IsCode(err, apperrors.CodeNotFound) {
						return []*entity.SearchResult{}, nil
					}
					return nil, err
				}
				if len(asset.Vector) == 0 {
					return []*entity.SearchResult{}, nil
				}
				// 多取一条以抵消自身
				results, err := o.vector.SearchSimilar(ctx, asset.Vector, limit+1, "")
				if err != nil {
					return nil, err
				}
				out := make([]*entity.SearchResult, 0, len(results))
				for _, r := range results {
					if r != nil && r.AssetID != n.AssetID {
						out = append(out, r)
					}
				}
				return out, nil
			},
		})
	}
	return branches
}

// attachSegments 为当前页结果并发读取片段，任一资产读取失败返回 false
//
// 失败的资产不带片段，其余结果照常返回。
func (o *Orchestrator) attachSegments(ctx context.Context, results []*entity.SearchResult, minConfidence float64) bool {
	if o.graph == nil || len(results) == 0 {
		return true
	}
	ctx, span := tracer.Start(ctx, "search.attachSegments")
	defer span.End()

	if o.cfg.Timeouts.Graph > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeouts.Graph)
		defer cancel()
	}

	var failed atomic.Bool
	var g errgroup.Group
	g.SetLimit(segmentFetchConcurrency)
	for _, r := range results {
		g.Go(func() error {
			var segments []*entity.Segment
			_, err := o.breakers.execute(entity.SourceGraph, func() ([]*entity.SearchResult, error) {
				var err error
				segments, err = o.graph.GetAssetSegments(ctx, r.AssetID)
				return nil, err
			})
			if err != nil {
				failed.Store(true)
				logger.Warn(logger.WithBackend(ctx, string(entity.SourceGraph)), "segment lookup failed",
					"asset_id", r.AssetID, "error", err.Error())
				return nil
			}
			for _, seg := range segments {
				if seg != nil && seg.ConfidenceScore >= minConfidence {
					r.Segments = append(r.Segments, seg)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed.Load() {
		span.SetStatus(codes.Error, "segment lookup failed")
		return false
	}
	return true
}

func containsSource(sources []entity.Source, src entity.Source) bool {
	for _, s := range sources {
		if s == src {
			return true
		}
	}
	return false
}

func sortSources(sources []entity.Source) {
	rank := make(map[entity.Source]int, len(sourceOrder))
	for i, s := range sourceOrder {
		rank[s] = i
	}
	sort.SliceStable(sources, func(i, j int) bool { return rank[sources[i]] < rank[sources[j]] })
}
