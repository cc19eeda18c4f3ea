package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/cadence/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Archive exports flat run records to a gocloud.dev/blob bucket, supporting
// local files, S3, GCS, Azure Blob Storage, and S3-compatible stores. Each
// record is written to <prefix>/<workflowId>/<runId>.json
type Archive struct {
	bucket *blob.Bucket
	prefix string
}

const recordExt = ".json"

var ErrRecordNotFound = errors.New("archived run record not found")

// Open opens the bucket at bucketURL, for example "file:///var/runs" or
// "s3://bucket?region=us-east-1"
func Open(ctx context.Context, bucketURL, prefix string) (*Archive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &Archive{bucket: bucket, prefix: prefix}, nil
}

// Put writes the exported form of a finished run
func (a *Archive) Put(ctx context.Context, res *api.WorkflowResult) error {
	data, err := json.Marshal(res.Export())
	if err != nil {
		return err
	}
	key := a.keyFor(res.WorkflowID, res.RunID)
	return a.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Get reads back an archived run record
func (a *Archive) Get(
	ctx context.Context, wfID api.WorkflowID, runID api.RunID,
) (*api.ResultRecord, error) {
	data, err := a.bucket.ReadAll(ctx, a.keyFor(wfID, runID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var rec api.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the IDs of every archived run of a workflow
func (a *Archive) List(
	ctx context.Context, wfID api.WorkflowID,
) ([]api.RunID, error) {
	dir := path.Join(a.prefix, string(wfID)) + "/"
	iter := a.bucket.List(&blob.ListOptions{Prefix: dir})

	var res []api.RunID
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		name, ok := strings.CutSuffix(path.Base(obj.Key), recordExt)
		if ok && !obj.IsDir {
			res = append(res, api.RunID(name))
		}
	}
}

// Delete removes an archived run record. Missing records are ignored
func (a *Archive) Delete(
	ctx context.Context, wfID api.WorkflowID, runID api.RunID,
) error {
	err := a.bucket.Delete(ctx, a.keyFor(wfID, runID))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (a *Archive) Close() error {
	return a.bucket.Close()
}

func (a *Archive) keyFor(wfID api.WorkflowID, runID api.RunID) string {
	return path.Join(a.prefix, string(wfID), string(runID)) + recordExt
}
