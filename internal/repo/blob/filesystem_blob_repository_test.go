//go:build integration || all

package blob_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/LoggeL/facecensor/internal/domain"
	"github.com/LoggeL/facecensor/internal/infra/logging"

	. "github.com/LoggeL/facecensor/internal/repo/blob"
)

func setupFileSystemBlobTestRepo(t *testing.T) *FileSystemRepository {
	t.Helper()

	logging.Configure(context.TODO(), logging.LoggerConfig{
		OutputHandle: os.Stderr,
		Level:        "debug",
	}, "test")

	cfg := FileSystemBlobRepositoryConfig{
		Basedir: t.TempDir(),
	}

	repo, err := NewFileSystemBlobRepository(context.TODO(), cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	return repo
}

func verifyFileSystemBlobContent(t *testing.T, path string, expectedContent []byte) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}

	if !bytes.Equal(expectedContent, content) {
		t.Errorf("content mismatch\nwant: %s\ngot:  %s", expectedContent, content)
	}
}

func TestFileSystemBlobRepository_Store(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)

	jobID := "5f56692f-0df9-4f68-b07a-bdb054943ed8"

	tests := []struct {
		name     string
		blob     *domain.Blob
		wantBody []byte
	}{
		{
			name:     "handles new artifact",
			blob:     domain.NewBlob(domain.ArtifactID(jobID, domain.ArtifactOriginal), []byte("original content")),
			wantBody: []byte("original content"),
		},
		{
			name:     "handles overwrite",
			blob:     domain.NewBlob(domain.ArtifactID(jobID, domain.ArtifactOriginal), []byte("new content")),
			wantBody: []byte("new content"),
		},
		{
			name:     "handles empty artifact",
			blob:     domain.NewBlob(domain.ArtifactID(jobID, domain.ArtifactProcessed), nil),
			wantBody: []byte{},
		},
		{
			name:     "handles large artifact",
			blob:     domain.NewBlob(domain.BlobID("largeblob"), make([]byte, 20*1024*1024)),
			wantBody: make([]byte, 20*1024*1024),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unlock, err := repo.Lock(context.TODO(), tt.blob.ID, true)
			if err != nil {
				t.Fatalf("failed to lock blob: %v", err)
			}
			t.Cleanup(unlock)

			if err := repo.Store(context.TODO(), tt.blob); err != nil {
				t.Fatalf("failed to store blob: %v", err)
			}

			storedPath := repo.GetFilename(tt.blob.ID)
			if _, err := os.Stat(storedPath); os.IsNotExist(err) {
				t.Error("expected file to exist, but it doesn't")
			}

			verifyFileSystemBlobContent(t, storedPath, tt.wantBody)

			if !repo.Exists(context.TODO(), tt.blob.ID) {
				t.Error("expected Exists to report true")
			}
		})
	}
}

func TestFileSystemBlobRepository_Fetch(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)

	tests := []struct {
		name      string
		blob      *domain.Blob
		storeBlob bool
		wantErr   error
	}{
		{
			name:      "handles existing blob",
			blob:      domain.NewBlob(domain.BlobID("existingblob"), []byte("test content")),
			storeBlob: true,
		},
		{
			name:    "handles missing blob",
			blob:    domain.NewBlob(domain.BlobID("missingblob"), nil),
			wantErr: domain.ErrArtifactNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.storeBlob {
				unlock, err := repo.Lock(context.TODO(), tt.blob.ID, true)
				if err != nil {
					t.Fatalf("failed to lock blob: %v", err)
				}
				t.Cleanup(unlock)

				if err := repo.Store(context.TODO(), tt.blob); err != nil {
					t.Fatalf("failed to store blob: %v", err)
				}
			}

			fetchedBlob, err := repo.Fetch(context.TODO(), tt.blob.ID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}

				if fetchedBlob != nil {
					t.Errorf("expected nil blob for missing blob")
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !bytes.Equal(fetchedBlob.Bytes(), tt.blob.Bytes()) {
				t.Errorf("content mismatch\nwant: %s\ngot:  %s", tt.blob.Bytes(), fetchedBlob.Bytes())
			}
		})
	}
}

func TestFileSystemBlobRepository_Delete(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)

	tests := []struct {
		name      string
		blob      *domain.Blob
		storeBlob bool
		wantErr   bool
	}{
		{
			name:      "handles existing blob",
			blob:      domain.NewBlob(domain.BlobID("existingblob"), []byte("test content")),
			storeBlob: true,
			wantErr:   false,
		},
		{
			name:      "handles missing blob",
			blob:      domain.NewBlob(domain.BlobID("missingblob"), nil),
			storeBlob: false,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.storeBlob {
				unlock, err := repo.Lock(context.TODO(), tt.blob.ID, true)
				if err != nil {
					t.Fatalf("failed to lock blob: %v", err)
				}
				t.Cleanup(unlock)

				if err := repo.Store(context.TODO(), tt.blob); err != nil {
					t.Fatalf("failed to store blob: %v", err)
				}
			}

			err := repo.Delete(context.TODO(), tt.blob.ID)
			if (err != nil) != tt.wantErr {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr {
				if _, err := os.Stat(repo.GetFilename(tt.blob.ID)); !os.IsNotExist(err) {
					t.Error("expected file to be deleted, but it still exists")
				}
			}
		})
	}
}

func TestFileSystemBlobRepository_Lock(t *testing.T) {
	t.Parallel()

	repo := setupFileSystemBlobTestRepo(t)

	tests := []struct {
		name      string
		id        domain.BlobID
		exclusive bool
		parallel  bool
		wantErr   bool
	}{
		{
			name:      "shared lock allows multiple readers",
			id:        "sharedlock",
			exclusive: false,
			parallel:  true,
			wantErr:   false,
		},
		{
			name:      "can reacquire after release",
			id:        "relock",
			exclusive: true,
			parallel:  false,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			unlock1, err := repo.Lock(context.TODO(), tt.id, tt.exclusive)
			if err != nil {
				t.Fatalf("failed to acquire first lock: %v", err)
			}
			defer unlock1()

			if tt.parallel {
				unlock2, err := repo.Lock(context.TODO(), tt.id, tt.exclusive)
				if (err != nil) != tt.wantErr {
					t.Errorf("unexpected error acquiring second lock: %v", err)
				}

				if err == nil {
					defer unlock2()
				}
			} else {
				unlock1()

				unlock2, err := repo.Lock(context.TODO(), tt.id, tt.exclusive)
				if (err != nil) != tt.wantErr {
					t.Errorf("unexpected error reacquiring lock: %v", err)
				}

				if err == nil {
					defer unlock2()
				}
			}
		})
	}
}
