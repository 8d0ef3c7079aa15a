// Package datasource opens input payloads by location.
package datasource

import (
	"context"
	"io"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/datasource/file"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/datasource/httpds"
)

// Source yields the bytes of one input payload.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Resolve expands location into sources. http(s) URLs are fetched through
// client; directories expand to the JSON files they contain; "-" is stdin.
func Resolve(location string, client *httpds.Client) ([]Named, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return []Named{{Name: location, Source: httpds.NewRemote(client, location)}}, nil
	}
	paths, err := file.Expand(location)
	if err != nil {
		return nil, err
	}
	out := make([]Named, 0, len(paths))
	for _, p := range paths {
		out = append(out, Named{Name: p, Source: file.NewLocal(p)})
	}
	return out, nil
}

// Named pairs a source with the location it was resolved from.
type Named struct {
	Name   string
	Source Source
}
