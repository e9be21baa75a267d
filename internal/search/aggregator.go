// Package search は複数プロバイダーへの横断検索を提供する。
//
// 1つのクエリを認可情報を持つプロバイダーへ並行に投げ、結果を
// Slack → Notion → Google Drive の固定順で連結する。あるプロバイダーの
// 失敗は他に影響せず、そのプロバイダーの結果が0件になるだけである。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/unisearch/internal/metrics"
	"github.com/hitoshi/unisearch/internal/model"
	"github.com/hitoshi/unisearch/internal/provider"
	"github.com/hitoshi/unisearch/internal/repository"
)

// recentQuery はSlackの最新メッセージ取得に使うワイルドカード。
const recentQuery = "*"

// CredentialLoader はユーザーの認可情報を読み込む。
// repository.CredentialRepositoryの部分集合として定義する。
type CredentialLoader interface {
	ListByUserID(ctx context.Context, userID string) (model.Credentials, error)
}

// Aggregator は横断検索を実行する。
type Aggregator struct {
	searchers map[model.Provider]provider.Searcher
	creds     CredentialLoader
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewAggregator はAggregatorを生成する。collectorがnilの場合は記録しない。
func NewAggregator(creds CredentialLoader, collector metrics.MetricsCollector, logger *slog.Logger, searchers ...provider.Searcher) *Aggregator {
	if collector == nil {
		collector = noopCollector{}
	}
	a := &Aggregator{
		searchers: make(map[model.Provider]provider.Searcher, len(searchers)),
		creds:     creds,
		metrics:   collector,
		logger:    logger,
	}
	for _, s := range searchers {
		a.searchers[s.Provider()] = s
	}
	return a
}

// candidate は検索対象となる1プロバイダー分の組。
type candidate struct {
	searcher provider.Searcher
	cred     *model.ProviderCredential
}

// Search はクエリを認可済みの全プロバイダーで検索する。
// 空白のみのクエリ、または認可情報が1つもない場合はプロバイダーを呼ばずに空の結果を返す。
// プロバイダー単位の失敗はエラーとして返さない。
func (a *Aggregator) Search(ctx context.Context, query string, creds model.Credentials) (*model.SearchResponse, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return newResponse(query), nil
	}
	return a.run(ctx, query, q, creds, model.AllProviders), nil
}

// Recent はSlackの最新メッセージを返す。
// "*" による検索をSlackに限定して通常の検索経路で実行する。
func (a *Aggregator) Recent(ctx context.Context, creds model.Credentials) (*model.SearchResponse, error) {
	return a.run(ctx, recentQuery, recentQuery, creds, []model.Provider{model.ProviderSlack}), nil
}

// SearchForUser はストアからユーザーの認可情報を読み直してから検索する。
func (a *Aggregator) SearchForUser(ctx context.Context, userID, query string) (*model.SearchResponse, error) {
	creds, err := a.loadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.Search(ctx, query, creds)
}

// RecentForUser はストアからユーザーの認可情報を読み直してからRecentを実行する。
func (a *Aggregator) RecentForUser(ctx context.Context, userID string) (*model.SearchResponse, error) {
	creds, err := a.loadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.Recent(ctx, creds)
}

func (a *Aggregator) loadCredentials(ctx context.Context, userID string) (model.Credentials, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	creds, err := a.creds.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return creds, nil
}

// candidates は有効な認可情報とアダプターの両方が揃ったプロバイダーを優先順に返す。
func (a *Aggregator) candidates(creds model.Credentials, providers []model.Provider) []candidate {
	var cs []candidate
	for _, p := range providers {
		cred := creds.Get(p)
		if cred == nil {
			continue
		}
		s, ok := a.searchers[p]
		if !ok {
			continue
		}
		cs = append(cs, candidate{searcher: s, cred: cred})
	}
	return cs
}

// run は候補プロバイダーを並行に検索し、全件の完了を待ってから固定順で連結する。
// 兄弟呼び出し同士でキャンセルを伝播させないため、errgroup.WithContextは使わない。
func (a *Aggregator) run(ctx context.Context, echo, q string, creds model.Credentials, providers []model.Provider) *model.SearchResponse {
	resp := newResponse(echo)

	cs := a.candidates(creds, providers)
	a.metrics.RecordSearchRequest(len(cs))
	if len(cs) == 0 {
		return resp
	}

	results := make([][]model.NormalizedResult, len(cs))
	var g errgroup.Group
	for i, c := range cs {
		g.Go(func() error {
			results[i] = a.searchOne(ctx, c, q)
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range cs {
		switch c.searcher.Provider() {
		case model.ProviderSlack:
			resp.Results.Slack = results[i]
		case model.ProviderNotion:
			resp.Results.Notion = results[i]
		case model.ProviderGoogleDrive:
			resp.Results.GoogleDrive = results[i]
		}
	}
	resp.Merged = merge(resp.Results)
	return resp
}

// searchOne は1プロバイダーを検索する。エラーやpanicは空スライスに変換する。
func (a *Aggregator) searchOne(ctx context.Context, c candidate, q string) (results []model.NormalizedResult) {
	p := string(c.searcher.Provider())
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("panic recovered in provider search",
				slog.String("provider", p),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			a.metrics.RecordSearchFailure(p)
			results = []model.NormalizedResult{}
		}
		a.metrics.RecordSearchLatency(p, time.Since(start))
	}()

	res, err := c.searcher.Search(ctx, q, c.cred)
	if err != nil {
		// 原因はアダプター側でWarn出力済みのため、ここでは所要時間のみDebugで残す
		a.logger.Debug("プロバイダーの検索結果を0件として扱います",
			slog.String("provider", p),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		a.metrics.RecordSearchFailure(p)
		return []model.NormalizedResult{}
	}
	if res == nil {
		res = []model.NormalizedResult{}
	}
	a.metrics.RecordSearchSuccess(p, len(res))
	return res
}

// merge はSlack → Notion → Google Driveの順で結果を連結する。並べ替えや重複排除はしない。
func merge(r model.ProviderResults) []model.NormalizedResult {
	merged := make([]model.NormalizedResult, 0, len(r.Slack)+len(r.Notion)+len(r.GoogleDrive))
	merged = append(merged, r.Slack...)
	merged = append(merged, r.Notion...)
	merged = append(merged, r.GoogleDrive...)
	return merged
}

func newResponse(query string) *model.SearchResponse {
	return &model.SearchResponse{
		Query: query,
		Results: model.ProviderResults{
			Slack:       []model.NormalizedResult{},
			Notion:      []model.NormalizedResult{},
			GoogleDrive: []model.NormalizedResult{},
		},
		Merged: []model.NormalizedResult{},
	}
}

type noopCollector struct{}

func (noopCollector) RecordSearchRequest(int)                  {}
func (noopCollector) RecordSearchSuccess(string, int)          {}
func (noopCollector) RecordSearchFailure(string)               {}
func (noopCollector) RecordSearchLatency(string, time.Duration) {}
func (noopCollector) RecordOAuthExchange(string, string)       {}

// compile-time interface check
var (
	_ CredentialLoader         = (repository.CredentialRepository)(nil)
	_ metrics.MetricsCollector = noopCollector{}
)
