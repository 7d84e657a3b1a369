/*
Copyright © 2026 the zdataset authors.
This file is part of zdataset.

zdataset is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

zdataset is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with zdataset.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package localzarr is the one concrete backend shipped with zdataset: a
// Zarr v2 chunked-array engine over a gocloud.dev/blob-backed (or
// in-memory, for tests) key/value store. Its bucket-driver resolution is
// adapted directly from the teacher's cloud.OpenBucket (spatialmodel/inmap
// cloud/bucket.go): "file"/"gs"/"s3" schemes map to fileblob/gcsblob/s3blob.
package localzarr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/zerr"
)

// OpenBucket resolves a bucket spec of the shape the schema factory
// produces (spec §4.1: {"driver": "file"|"gcs"|"s3", "bucket": ...,
// "path": ...}) into a *blob.Bucket, exactly mirroring
// spatialmodel/inmap's cloud.OpenBucket scheme dispatch.
func OpenBucket(ctx context.Context, driver, bucketName string) (*blob.Bucket, error) {
	switch driver {
	case "file":
		return fileblob.OpenBucket(bucketName, nil)
	case "gcs":
		return gsBucket(ctx, bucketName)
	case "s3":
		return s3Bucket(ctx, bucketName)
	default:
		return nil, zerr.New(zerr.DriverMissing, "localzarr: invalid kvstore driver %q", driver)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, zerr.WrapBackend(err, "localzarr: gcs credentials")
	}
	client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, zerr.WrapBackend(err, "localzarr: gcs http client")
	}
	bucket, err := gcsblob.OpenBucket(ctx, client, name, nil)
	if err != nil {
		return nil, zerr.WrapBackend(err, "localzarr: opening gcs bucket %q", name)
	}
	return bucket, nil
}

// s3Bucket opens an S3 bucket assuming AWS_REGION/AWS_ACCESS_KEY_ID/
// AWS_SECRET_ACCESS_KEY are set in the environment, as the teacher does.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	cfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, zerr.WrapBackend(err, "localzarr: aws session")
	}
	bucket, err := s3blob.OpenBucket(ctx, sess, name, nil)
	if err != nil {
		return nil, zerr.WrapBackend(err, "localzarr: opening s3 bucket %q", name)
	}
	return bucket, nil
}

// BlobKV is a backend.KVStore over a *blob.Bucket: every Open call on a
// given bucket+prefix pair returns a handle scoped to keys under that
// prefix (mirroring how the teacher scopes blob keys under
// "<bucket>/<user>/<job>/..." in cloud/config.go).
type BlobKV struct{}

// Open resolves spec (the schema factory's §4.1 kvstore document: driver,
// bucket, path) into a handle.
func (BlobKV) Open(ctx context.Context, spec map[string]interface{}) (backend.KVHandle, error) {
	driver, _ := spec["driver"].(string)
	bucketName, _ := spec["bucket"].(string)
	pathPrefix, _ := spec["path"].(string)
	bucket, err := OpenBucket(ctx, driver, bucketName)
	if err != nil {
		return nil, err
	}
	return &blobHandle{bucket: bucket, prefix: strings.TrimSuffix(pathPrefix, "/")}, nil
}

type blobHandle struct {
	bucket *blob.Bucket
	prefix string
}

func (h *blobHandle) fullKey(key string) string {
	if h.prefix == "" {
		return key
	}
	return h.prefix + "/" + key
}

func (h *blobHandle) Read(ctx context.Context, key string) backend.Future[[]byte] {
	f, resolve := backend.NewFuture[[]byte]()
	go func() {
		r, err := h.bucket.NewReader(ctx, h.fullKey(key), nil)
		if err != nil {
			resolve(nil, zerr.WrapBackend(err, "localzarr: reading key %q", key))
			return
		}
		defer r.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			resolve(nil, zerr.WrapBackend(err, "localzarr: reading key %q", key))
			return
		}
		resolve(buf.Bytes(), nil)
	}()
	return *f
}

func (h *blobHandle) Write(ctx context.Context, key string, data []byte) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		w, err := h.bucket.NewWriter(ctx, h.fullKey(key), nil)
		if err != nil {
			resolve(struct{}{}, zerr.WrapBackend(err, "localzarr: creating writer for key %q", key))
			return
		}
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			resolve(struct{}{}, zerr.WrapBackend(err, "localzarr: writing key %q", key))
			return
		}
		if err := w.Close(); err != nil {
			resolve(struct{}{}, zerr.WrapBackend(err, "localzarr: closing writer for key %q", key))
			return
		}
		resolve(struct{}{}, nil)
	}()
	return *f
}

func (h *blobHandle) DeleteRange(ctx context.Context, prefix string) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		iter := h.bucket.List(&blob.ListOptions{Prefix: h.fullKey(prefix)})
		for {
			obj, err := iter.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				resolve(struct{}{}, zerr.WrapBackend(err, "localzarr: listing keys under %q", prefix))
				return
			}
			if err := h.bucket.Delete(ctx, obj.Key); err != nil {
				resolve(struct{}{}, zerr.WrapBackend(err, "localzarr: deleting key %q", obj.Key))
				return
			}
		}
		resolve(struct{}{}, nil)
	}()
	return *f
}

func (h *blobHandle) List(ctx context.Context, prefix string) backend.Future[[]string] {
	f, resolve := backend.NewFuture[[]string]()
	go func() {
		var keys []string
		iter := h.bucket.List(&blob.ListOptions{Prefix: h.fullKey(prefix)})
		for {
			obj, err := iter.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				resolve(nil, zerr.WrapBackend(err, "localzarr: listing keys under %q", prefix))
				return
			}
			keys = append(keys, strings.TrimPrefix(obj.Key, h.prefix+"/"))
		}
		resolve(keys, nil)
	}()
	return *f
}

// MemKV is an in-memory backend.KVStore, used by tests in place of the
// real blob-backed one — grounded on how the teacher fakes its cloud
// runner in cloud/fakerunner.go rather than exercising real network
// services in unit tests.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV returns an empty in-memory store.
func NewMemKV() *MemKV { return &MemKV{data: make(map[string][]byte)} }

func (m *MemKV) Open(ctx context.Context, spec map[string]interface{}) (backend.KVHandle, error) {
	prefix, _ := spec["path"].(string)
	return &memHandle{store: m, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

type memHandle struct {
	store  *MemKV
	prefix string
}

func (h *memHandle) fullKey(key string) string {
	if h.prefix == "" {
		return key
	}
	return h.prefix + "/" + key
}

func (h *memHandle) Read(ctx context.Context, key string) backend.Future[[]byte] {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	data, ok := h.store.data[h.fullKey(key)]
	if !ok {
		return *backend.Resolved[[]byte](nil, zerr.New(zerr.BackendError, "localzarr: key %q not found", key))
	}
	cp := append([]byte(nil), data...)
	return *backend.Resolved(cp, nil)
}

func (h *memHandle) Write(ctx context.Context, key string, data []byte) backend.Future[struct{}] {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.data[h.fullKey(key)] = append([]byte(nil), data...)
	return *backend.Resolved(struct{}{}, nil)
}

func (h *memHandle) DeleteRange(ctx context.Context, prefix string) backend.Future[struct{}] {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	full := h.fullKey(prefix)
	for k := range h.store.data {
		if strings.HasPrefix(k, full) {
			delete(h.store.data, k)
		}
	}
	return *backend.Resolved(struct{}{}, nil)
}

func (h *memHandle) List(ctx context.Context, prefix string) backend.Future[[]string] {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	full := h.fullKey(prefix)
	var keys []string
	for k := range h.store.data {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, h.prefix+"/"))
		}
	}
	return *backend.Resolved(keys, nil)
}

// ParseRootPath mirrors the schema factory's (spec §4.1) kvstore
// derivation: a gs:// or s3:// root routes to the corresponding cloud
// driver with the URL host as the bucket name and the URL path plus the
// variable name as the key path; anything else is a local file path.
func ParseRootPath(rootPath, variable string) map[string]interface{} {
	u, err := url.Parse(rootPath)
	if err == nil && (u.Scheme == "gs" || u.Scheme == "s3") {
		driver := "gcs"
		if u.Scheme == "s3" {
			driver = "s3"
		}
		return map[string]interface{}{
			"driver": driver,
			"bucket": u.Host,
			"path":   strings.TrimPrefix(fmt.Sprintf("%s/%s", strings.Trim(u.Path, "/"), variable), "/"),
		}
	}
	return map[string]interface{}{
		"driver": "file",
		"bucket": rootPath,
		"path":   variable,
	}
}
