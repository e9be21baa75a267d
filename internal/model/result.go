// Package model はドメインモデルを定義する。
package model

import "time"

// ResultKind は検索結果の種別を表す。
type ResultKind string

const (
	ResultKindMessage  ResultKind = "message"
	ResultKindPage     ResultKind = "page"
	ResultKindDatabase ResultKind = "database"
	ResultKindFile     ResultKind = "file"
)

// NormalizedResult はプロバイダー非依存の検索ヒット。
// 検索ごとに生成され、永続化はしない。
type NormalizedResult struct {
	Provider   Provider
	Kind       ResultKind
	Title      string
	Text       string
	User       string
	Channel    string
	ObjectType string
	URL        string
	Timestamp  *time.Time
	Icon       string
}

// ProviderResults はプロバイダーごとの検索結果。
type ProviderResults struct {
	Slack       []NormalizedResult
	Notion      []NormalizedResult
	GoogleDrive []NormalizedResult
}

// SearchResponse は横断検索の結果。
// MergedはSlack → Notion → Google Driveの固定順で連結される。
type SearchResponse struct {
	Query   string
	Results ProviderResults
	Merged  []NormalizedResult
}
