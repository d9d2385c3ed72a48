package query

import "github.com/rpggio/cinequery/internal/domain/movie"

// DatasetProvider hands out the current immutable dataset.
type DatasetProvider interface {
	Dataset() (*movie.Dataset, error)
}
