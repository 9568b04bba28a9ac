package supabase

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
)

// UploadOptions はファイルアップロードのオプション。
type UploadOptions struct {
	ContentType  string
	CacheControl string // 秒数。例: "3600"
	Upsert       bool
}

// StorageClient はStorage互換のファイル保存エンドポイントのクライアント。
type StorageClient struct {
	c *Client
}

// uploadResponse はアップロード成功時のレスポンス。
type uploadResponse struct {
	Key string `json:"Key"`
}

// objectPath はバケット内のオブジェクト名をURLパスに変換する。
// "/"区切りの各セグメントをエスケープする。
func objectPath(bucket, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// Upload はファイルをバケットに保存し、保存先のキーを返す。
// POST /storage/v1/object/{bucket}/{name}
func (s *StorageClient) Upload(ctx context.Context, bucket, name string, data []byte, opts UploadOptions) (string, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := http.Header{"Content-Type": {contentType}}
	if opts.CacheControl != "" {
		header.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	if opts.Upsert {
		header.Set("x-upsert", "true")
	}

	var resp uploadResponse
	err := s.c.send(ctx, request{
		service:   "storage",
		operation: "upload",
		method:    http.MethodPost,
		path:      "/storage/v1/object/" + objectPath(bucket, name),
		body:      bytes.NewReader(data),
		header:    header,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Key == "" {
		resp.Key = bucket + "/" + name
	}
	return resp.Key, nil
}

// PublicURL は公開バケット内のオブジェクトの公開URLを返す。
// ネットワーク呼び出しは行わない。
func (s *StorageClient) PublicURL(bucket, name string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, name)
}
