package s3api

import (
	"context"
	"sort"
	"strings"

	"github.com/marmos91/byteserve/pkg/metadata"
)

// keyedObject pairs an Object with its full slash-joined key, computed
// once up front so the delimiter-grouping pass below never re-walks
// the parent chain per entry.
type keyedObject struct {
	key string
	obj *metadata.Object
}

// listBucketEntries returns every Object in bucketID (files and
// folders alike) with its full key, sorted lexicographically the way
// S3 keys are ordered.
func (s *Server) listBucketEntries(ctx context.Context, bucketID string) ([]keyedObject, error) {
	files, err := s.store.ListObjectsRecursively(ctx, bucketID, "")
	if err != nil {
		return nil, err
	}
	entries := make([]keyedObject, 0, len(files))
	for _, f := range files {
		key, err := s.store.ObjectKey(ctx, bucketID, f.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, keyedObject{key: key, obj: f})
	}

	folders, err := s.listFoldersRecursively(ctx, bucketID, nil, "")
	if err != nil {
		return nil, err
	}
	entries = append(entries, folders...)

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries, nil
}

func (s *Server) listFoldersRecursively(ctx context.Context, bucketID string, parentID *string, prefix string) ([]keyedObject, error) {
	children, _, err := s.store.ListChildren(ctx, bucketID, parentID, metadata.ChildFilter{FoldersOnly: true}, metadata.OrderByFilename, 0, "")
	if err != nil {
		return nil, err
	}
	var out []keyedObject
	for _, c := range children {
		key := prefix + c.Filename + "/"
		out = append(out, keyedObject{key: key, obj: c})
		sub, err := s.listFoldersRecursively(ctx, bucketID, &c.ID, key)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// groupByDelimiter splits entries matching prefix into literal
// Contents and collapsed CommonPrefixes, per S3's grouping rule: a key
// that, after prefix removal, contains delimiter is folded into a
// CommonPrefixes entry ending at the first delimiter. A folder
// Object's own key already ends in "/", so this same rule surfaces it
// as a CommonPrefixes entry without any special case.
func groupByDelimiter(entries []keyedObject, prefix, delimiter string) (contents []keyedObject, commonPrefixes []string) {
	seen := make(map[string]bool)
	for _, e := range entries {
		if !strings.HasPrefix(e.key, prefix) {
			continue
		}
		rest := e.key[len(prefix):]
		if rest == "" {
			continue
		}
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					commonPrefixes = append(commonPrefixes, cp)
				}
				continue
			}
		} else if e.obj.IsFolder() {
			// Flat (no-delimiter) listings surface files only; folders
			// only ever appear via CommonPrefixes, per the delimiter case.
			continue
		}
		contents = append(contents, e)
	}
	sort.Strings(commonPrefixes)
	return contents, commonPrefixes
}
