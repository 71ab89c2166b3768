package search

import (
	"math"
	"sort"
	"strings"

	"dataflux-query-api/internal/config"
	"dataflux-query-api/internal/domain/entity"
)

// sourceOrder 合并时遍历来源的固定顺序，保证结果与 goroutine 完成顺序无关
var sourceOrder = []entity.Source{entity.SourceVector, entity.SourceGraph, entity.SourceMetadata}

// displayOrder 展示字段取值优先级
var displayOrder = []entity.Source{entity.SourceMetadata, entity.SourceVector, entity.SourceGraph}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeSource 将单个来源的原始得分映射到 [0,1]，同一资产保留最高分
func normalizeSource(results []*entity.SearchResult) map[string]float64 {
	var maxRelevance float64
	var ranked int
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.ScoreKind {
		case entity.ScoreRelevance:
			if r.Score > maxRelevance {
				maxRelevance = r.Score
			}
		case entity.ScoreRank:
			ranked++
		}
	}

	out := make(map[string]float64, len(results))
	rank := 0
	for _, r := range results {
		if r == nil || r.AssetID == "" {
			continue
		}
		var s float64
		switch r.ScoreKind {
		case entity.ScoreDistance:
			s = clamp01(1 - r.Score/2)
		case entity.ScoreRelevance:
			if maxRelevance > 0 {
				s = clamp01(r.Score / maxRelevance)
			}
		case entity.ScoreRank:
			s = 1 - float64(rank)/float64(ranked)
			rank++
		default:
			s = clamp01(r.Score)
		}
		if prev, ok := out[r.AssetID]; !ok || s > prev {
			out[r.AssetID] = s
		}
	}
	return out
}

func weightOf(w config.FusionWeights, src entity.Source) float64 {
	switch src {
	case entity.SourceVector:
		return w.Vector
	case entity.SourceGraph:
		return w.Graph
	case entity.SourceMetadata:
		return w.Metadata
	}
	return 0
}

// merge 按 asset_id 合并多来源结果并排序
func merge(sets map[entity.Source][]*entity.SearchResult, weights config.FusionWeights) []*entity.SearchResult {
	normalized := make(map[entity.Source]map[string]float64, len(sets))
	for src, results := range sets {
		normalized[src] = normalizeSource(results)
	}

	// 每个来源中第一次出现的结果作为展示字段候选
	firstSeen := make(map[entity.Source]map[string]*entity.SearchResult, len(sets))
	var ids []string
	known := make(map[string]struct{})
	for _, src := range sourceOrder {
		byID := make(map[string]*entity.SearchResult)
		for _, r := range sets[src] {
			if r == nil || r.AssetID == "" {
				continue
			}
			if _, ok := byID[r.AssetID]; !ok {
				byID[r.AssetID] = r
			}
			if _, ok := known[r.AssetID]; !ok {
				known[r.AssetID] = struct{}{}
				ids = append(ids, r.AssetID)
			}
		}
		firstSeen[src] = byID
	}

	merged := make([]*entity.SearchResult, 0, len(ids))
	for _, id := range ids {
		var sources []entity.Source
		var weighted, totalWeight, plain float64
		for _, src := range sourceOrder {
			s, ok := normalized[src][id]
			if !ok {
				continue
			}
			sources = append(sources, src)
			w := weightOf(weights, src)
			weighted += w * s
			totalWeight += w
			plain += s
		}

		var score float64
		switch {
		case len(sources) == 1:
			score = normalized[sources[0]][id]
		case totalWeight > 0:
			score = weighted / totalWeight
		default:
			score = plain / float64(len(sources))
		}

		out := &entity.SearchResult{AssetID: id, Score: score, Sources: sources}
		for _, src := range displayOrder {
			if r, ok := firstSeen[src][id]; ok {
				fillDisplay(out, r)
			}
		}
		merged = append(merged, out)
	}

	sortResults(merged)
	return merged
}

// fillDisplay 只填充尚未设置的展示字段
func fillDisplay(dst, src *entity.SearchResult) {
	if dst.Filename == "" {
		dst.Filename = src.Filename
	}
	if dst.MimeType == "" {
		dst.MimeType = src.MimeType
	}
	if dst.FileSize == 0 {
		dst.FileSize = src.FileSize
	}
	if dst.ProcessingStatus == "" {
		dst.ProcessingStatus = src.ProcessingStatus
	}
	if dst.CollectionID == "" {
		dst.CollectionID = src.CollectionID
	}
	if len(dst.Tags) == 0 && len(src.Tags) > 0 {
		dst.Tags = src.Tags
	}
	if len(dst.Metadata) == 0 && len(src.Metadata) > 0 {
		dst.Metadata = src.Metadata
	}
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
}

// sortResults 得分降序，其次 created_at 降序，最后 asset_id 升序
func sortResults(results []*entity.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.AssetID < b.AssetID
	})
}

// matches 用合并后的字段再过滤一次，未知字段不参与判断
func (n *normalizedSearch) matches(r *entity.SearchResult) bool {
	if !matchesMediaType(n.MediaTypes, r.MimeType) {
		return false
	}
	if n.CollectionID != "" && r.CollectionID != "" && r.CollectionID != n.CollectionID {
		return false
	}
	if n.ProcessingStatus != "" && r.ProcessingStatus != "" && r.ProcessingStatus != n.ProcessingStatus {
		return false
	}
	if len(n.Tags) > 0 && len(r.Tags) > 0 {
		for _, t := range n.Tags {
			for _, have := range r.Tags {
				if have == t {
					return true
				}
			}
		}
		return false
	}
	return true
}

// matchesMediaType mime 类型的主类型需在列表中；列表为空或 mime 未知时放行
func matchesMediaType(mediaTypes []string, mime string) bool {
	if len(mediaTypes) == 0 || mime == "" {
		return true
	}
	mime = strings.ToLower(mime)
	for _, mt := range mediaTypes {
		if strings.HasPrefix(mime, mt+"/") {
			return true
		}
	}
	return false
}

func page(results []*entity.SearchResult, offset, limit int) []*entity.SearchResult {
	if offset >= len(results) {
		return []*entity.SearchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
