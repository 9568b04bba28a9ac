package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Filter はPostgRESTの行フィルタ（column=op.value）を表す。
type Filter struct {
	Column string
	Op     string // eq, is, ilike など
	Value  string
}

// Eq は列が値と等しい行に絞り込むフィルタを返す。
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// IsNull は列がNULLの行に絞り込むフィルタを返す。
func IsNull(column string) Filter {
	return Filter{Column: column, Op: "is", Value: "null"}
}

// Order は並び順の指定を表す。
type Order struct {
	Column    string
	Ascending bool
}

// Query はSelectの条件を表す。
type Query struct {
	Select  string // 例: "*, employee:employees(name, email)"。空の場合は"*"
	Filters []Filter
	Order   []Order
}

// RestClient はPostgREST互換のデータエンドポイントのクライアント。
type RestClient struct {
	c *Client
}

// values はクエリをURLパラメータに変換する。
func (q Query) values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", strings.ReplaceAll(sel, " ", ""))
	addFilters(v, q.Filters)

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "desc"
			if o.Ascending {
				dir = "asc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	return v
}

func addFilters(v url.Values, filters []Filter) {
	for _, f := range filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
}

// Select はテーブルの行を取得し、destにデコードする。destはスライスへのポインタ。
// GET /rest/v1/{table}
func (r *RestClient) Select(ctx context.Context, table string, q Query, dest any) error {
	return r.c.send(ctx, request{
		service:   "rest",
		operation: "select_" + table,
		method:    http.MethodGet,
		path:      "/rest/v1/" + url.PathEscape(table),
		query:     q.values(),
	}, dest)
}

// Insert はテーブルに行を追加する。rowsは1行の構造体または構造体のスライス。
// POST /rest/v1/{table}
func (r *RestClient) Insert(ctx context.Context, table string, rows any) error {
	body, err := jsonBody(rows)
	if err != nil {
		return err
	}

	return r.c.send(ctx, request{
		service:   "rest",
		operation: "insert_" + table,
		method:    http.MethodPost,
		path:      "/rest/v1/" + url.PathEscape(table),
		body:      body,
		header:    http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}

// Update はフィルタに一致する行をpatchで更新し、更新された行数を返す。
// PATCH /rest/v1/{table}
func (r *RestClient) Update(ctx context.Context, table string, filters []Filter, patch any) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update on %s requires at least one filter", table)
	}

	body, err := jsonBody(patch)
	if err != nil {
		return 0, err
	}

	v := url.Values{}
	addFilters(v, filters)

	var updated []json.RawMessage
	err = r.c.send(ctx, request{
		service:   "rest",
		operation: "update_" + table,
		method:    http.MethodPatch,
		path:      "/rest/v1/" + url.PathEscape(table),
		query:     v,
		body:      body,
		header:    http.Header{"Prefer": {"return=representation"}},
	}, &updated)
	if err != nil {
		return 0, err
	}
	return len(updated), nil
}
