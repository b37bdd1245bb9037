package lakehouse

import (
	"context"
	"path"
	"strings"

	"fabdrop/internal/artifact"
	"fabdrop/internal/performance"
	apperrors "fabdrop/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"
)

// Uploader writes a file below the lakehouse root, e.g. "Files/data/a.csv".
type Uploader interface {
	Upload(ctx context.Context, relativePath string, data []byte) error
}

// BlobUploader writes to OneLake through its blob endpoint. The workspace is
// the container and blobs live under the lakehouse id.
type BlobUploader struct {
	client      *azblob.Client
	workspaceID string
	lakehouseID string
}

// NewBlobUploader creates an uploader for one lakehouse.
func NewBlobUploader(endpoint, workspaceID, lakehouseID string, cred azcore.TokenCredential, opts *policy.ClientOptions) (*BlobUploader, error) {
	if workspaceID == "" || lakehouseID == "" {
		return nil, apperrors.ConfigError("workspace and lakehouse ids are required for upload", "lakehouse_id")
	}
	var clientOpts azblob.ClientOptions
	if opts != nil {
		clientOpts.ClientOptions = *opts
	}
	client, err := azblob.NewClient(strings.TrimSuffix(endpoint, "/"), cred, &clientOpts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "failed to create OneLake client").
			WithContext("endpoint", endpoint)
	}
	return &BlobUploader{client: client, workspaceID: workspaceID, lakehouseID: lakehouseID}, nil
}

// Upload implements Uploader.
func (u *BlobUploader) Upload(ctx context.Context, relativePath string, data []byte) error {
	blob := path.Join(u.lakehouseID, relativePath)
	if _, err := u.client.UploadBuffer(ctx, u.workspaceID, blob, data, nil); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRemoteRejected, "OneLake upload failed").
			WithContext("blob", blob)
	}
	return nil
}

// FilesPath is the lakehouse-relative path of an uploaded file.
func FilesPath(folder, file string) string {
	return path.Join("Files", folder, file)
}

// UploadWorkers is how many files UploadAll sends at once.
const UploadWorkers = 4

// UploadAll uploads every file into folder. The first failure stops files not
// yet started and is returned.
func UploadAll(ctx context.Context, up Uploader, folder string, files artifact.FileSet, log logrus.FieldLogger) error {
	names := files.Paths()
	tasks := make([]performance.Task, 0, len(names))
	for _, name := range names {
		rel := FilesPath(folder, name)
		data := files[name]
		tasks = append(tasks, performance.Task{ID: rel, Run: func(ctx context.Context) error {
			if err := up.Upload(ctx, rel, data); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"file": rel, "bytes": len(data)}).Info("uploaded")
			return nil
		}})
	}
	_, err := performance.NewParallelExecutor(UploadWorkers).Execute(ctx, tasks)
	return err
}
