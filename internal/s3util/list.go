// Package s3util provides thin helpers over the S3 client for album storage.
package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/store"
)

// AlbumLister enumerates a user's stored images by S3 prefix. It implements
// sorter.ObjectLister.
type AlbumLister struct {
	Client *s3.Client
	Bucket string
}

// ListAlbum returns every object key under the user's album prefix.
// Folder placeholder keys (trailing slash) are included as-is; the caller
// filters them.
func (l *AlbumLister) ListAlbum(ctx context.Context, userID string) ([]string, error) {
	prefix := store.AlbumPrefix(userID)

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(l.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	log.Debug().
		Str("bucket", l.Bucket).
		Str("prefix", prefix).
		Int("objects", len(keys)).
		Msg("Album listing complete")
	return keys, nil
}
