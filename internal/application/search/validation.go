package search

import (
	"math"
	"sort"
	"strings"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
	apperrors "dataflux-query-api/pkg/errors"
)

// 允许的过滤键
const (
	FilterCollectionID     = "collection_id"
	FilterProcessingStatus = "processing_status"
	FilterTags             = "tags"
)

// mediaTypeAll 表示不按媒体类型过滤
const mediaTypeAll = "all"

// normalizedSearch 校验并归一化后的检索请求，同时也是缓存键的来源
type normalizedSearch struct {
	Query            string                  `json:"query"`
	Vector           []float32               `json:"vector,omitempty"`
	MediaTypes       []string                `json:"media_types"`
	CollectionID     string                  `json:"collection_id"`
	ProcessingStatus entity.ProcessingStatus `json:"processing_status"`
	Tags             []string                `json:"tags"`
	Limit            int                     `json:"limit"`
	Offset           int                     `json:"offset"`
	IncludeSegments  bool                    `json:"include_segments"`
	ConfidenceMin    float64                 `json:"confidence_min"`
}

func (n *normalizedSearch) hasText() bool   { return n.Query != "" }
func (n *normalizedSearch) hasVector() bool { return len(n.Vector) > 0 }

func (n *normalizedSearch) hasFilters() bool {
	return len(n.MediaTypes) > 0 || n.CollectionID != "" || n.ProcessingStatus != "" || len(n.Tags) > 0
}

// window 合并后需要的候选数量
func (n *normalizedSearch) window() int {
	return n.Offset + n.Limit
}

type normalizedSimilar struct {
	AssetID    string   `json:"asset_id"`
	Limit      int      `json:"limit"`
	Threshold  float64  `json:"threshold"`
	MediaTypes []string `json:"media_types"`
}

func normalizeLimit(limit int, cfg *config.SearchConfig) int {
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	return limit
}

func normalizeSearch(req *entity.SearchRequest, cfg *config.SearchConfig) (*normalizedSearch, error) {
	if req == nil {
		return nil, apperrors.Validation("search request is required")
	}
	if req.Offset < 0 {
		return nil, apperrors.Validation("offset must be >= 0, got %d", req.Offset)
	}
	if err := checkUnit("confidence_min", req.ConfidenceMin); err != nil {
		return nil, err
	}

	n := &normalizedSearch{
		Query:        strings.ToLower(strings.TrimSpace(req.Query)),
		Vector:       req.Vector,
		MediaTypes:   normalizeMediaTypes(req.MediaTypes),
		CollectionID: strings.TrimSpace(req.CollectionID),
		Limit:        normalizeLimit(req.Limit, cfg),
		Offset:       req.Offset,

		IncludeSegments: req.IncludeSegments,
		ConfidenceMin:   req.ConfidenceMin,
	}

	for key, raw := range req.Filters {
		switch key {
		case FilterCollectionID:
			s, ok := raw.(string)
			if !ok {
				return nil, apperrors.Validation("filter %s must be a string", key)
			}
			if n.CollectionID != "" && n.CollectionID != strings.TrimSpace(s) {
				return nil, apperrors.Validation("conflicting collection_id filters")
			}
			n.CollectionID = strings.TrimSpace(s)
		case FilterProcessingStatus:
			s, ok := raw.(string)
			status := entity.ProcessingStatus(strings.ToLower(strings.TrimSpace(s)))
			if !ok || !status.Valid() {
				return nil, apperrors.Validation("invalid processing_status filter %v", raw)
			}
			n.ProcessingStatus = status
		case FilterTags:
			tags, err := toTags(raw)
			if err != nil {
				return nil, err
			}
			n.Tags = tags
		default:
			return nil, apperrors.Validation("unsupported filter %q", key)
		}
	}

	if !n.hasText() && !n.hasVector() && !n.hasFilters() {
		return nil, apperrors.Validation("query, vector or filters is required")
	}
	return n, nil
}

func normalizeSimilar(req *entity.SimilarRequest, cfg *config.SearchConfig) (*normalizedSimilar, error) {
	if req == nil || strings.TrimSpace(req.AssetID) == "" {
		return nil, apperrors.Validation("asset_id is required")
	}
	threshold := cfg.SimilarThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
		if err := checkUnit("threshold", threshold); err != nil {
			return nil, err
		}
	}
	return &normalizedSimilar{
		AssetID:    strings.TrimSpace(req.AssetID),
		Limit:      normalizeLimit(req.Limit, cfg),
		Threshold:  threshold,
		MediaTypes: normalizeMediaTypes(req.MediaTypes),
	}, nil
}

func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperrors.Validation("%s must be within [0,1], got %v", name, v)
	}
	return nil
}

// normalizeMediaTypes 去重排序，"all" 或空值视为不过滤
func normalizeMediaTypes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, mt := range in {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if mt == "" {
			continue
		}
		if mt == mediaTypeAll {
			return []string{}
		}
		if _, ok := seen[mt]; ok {
			continue
		}
		seen[mt] = struct{}{}
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

func toTags(raw any) ([]string, error) {
	var tags []string
	switch v := raw.(type) {
	case string:
		tags = []string{v}
	case []string:
		tags = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, apperrors.Validation("filter tags must contain strings, got %T", item)
			}
			tags = append(tags, s)
		}
	default:
		return nil, apperrors.Validation("filter tags must be a string or list of strings")
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// backendLimit 每个后端的召回数量
func backendLimit(window int, cfg *config.SearchConfig) int {
	factor := cfg.FanoutFactor
	if factor <= 0 {
		factor = 1
	}
	n := window * factor
	if cfg.MaxBackendLimit > 0 && n > cfg.MaxBackendLimit {
		n = cfg.MaxBackendLimit
	}
	return n
}
