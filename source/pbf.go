package source

import (
	"context"
)

// PBF serves an extract that already exists on the filesystem. Nothing
// is fetched and the file is not validated.
type PBF struct {
	Path string
}

func (s *PBF) Resolve(ctx context.Context) (string, error) {
	return s.Path, nil
}
