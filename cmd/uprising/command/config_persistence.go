package command

import (
	"fmt"

	"github.com/latchko/go-uprising/internal/persistence"
	"github.com/pixil98/go-errors"
)

type PersistenceConfig struct {
	Path string `json:"path"`
}

func (p *PersistenceConfig) validate() error {
	el := errors.NewErrorList()

	if p.Path == "" {
		el.Add(fmt.Errorf("path is required"))
	}

	return el.Err()
}

func (p *PersistenceConfig) buildDB() (*persistence.DB, error) {
	return persistence.Open(p.Path)
}
